// Package formats encodes and decodes collections for export and import.
package formats

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arthur-debert/docstore/types"
)

// Format defines how a document list is written to and read from a stream
type Format struct {
	// Name is the format identifier (alphanumeric, dashes, underscores, lowercase)
	Name string

	// Extension is the file extension including the dot (e.g., ".json")
	Extension string

	// Encode writes docs to w
	Encode func(w io.Writer, docs []types.Document) error

	// Decode reads a document list from r. Nil for output-only formats.
	Decode func(r io.Reader) ([]types.Document, error)
}

// registry holds all available formats
var registry = make(map[string]*Format)

// Register adds a new format to the registry
func Register(format *Format) error {
	if !isValidFormatName(format.Name) {
		return fmt.Errorf("invalid format name %q: must be lowercase alphanumeric with dashes and underscores only", format.Name)
	}
	if format.Encode == nil {
		return fmt.Errorf("format %q has no encoder", format.Name)
	}

	if format.Extension != "" && !strings.HasPrefix(format.Extension, ".") {
		format.Extension = "." + format.Extension
	}

	if _, exists := registry[format.Name]; exists {
		return fmt.Errorf("format %q already registered", format.Name)
	}

	registry[format.Name] = format
	return nil
}

// Get returns a format by name
func Get(name string) (*Format, error) {
	format, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown format %q", name)
	}
	return format, nil
}

// ForPath returns the format whose extension matches path
func ForPath(path string) (*Format, error) {
	for _, name := range List() {
		f := registry[name]
		if f.Extension != "" && strings.HasSuffix(path, f.Extension) {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no format for %q", path)
}

// List returns all registered format names, sorted
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isValidFormatName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func mustRegister(format *Format) {
	if err := Register(format); err != nil {
		panic(fmt.Sprintf("failed to register %s format: %v", format.Name, err))
	}
}
