package formats

import (
	"errors"
	"fmt"
	"io"

	"github.com/arthur-debert/docstore/types"
	"gopkg.in/yaml.v3"
)

// YAML writes a sequence of mappings with sorted keys
var YAML = &Format{
	Name:      "yaml",
	Extension: ".yaml",
	Encode: func(w io.Writer, docs []types.Document) error {
		if docs == nil {
			docs = []types.Document{}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	},
	Decode: func(r io.Reader) ([]types.Document, error) {
		var raw []map[string]any
		if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		return toDocuments(raw), nil
	},
}

func init() {
	mustRegister(YAML)
}
