package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/arthur-debert/docstore/docstore/storage"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// ModelsFile is the on-disk list of model descriptors. It is read as YAML,
// so JSON files work too.
type ModelsFile struct {
	Models []types.ModelConfig `yaml:"models" json:"models" jsonschema:"required"`
}

// LoadModelsFile reads and decodes a models file. Unknown keys are errors.
func LoadModelsFile(fs storage.FileSystem, path string) (*ModelsFile, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}
	return ParseModelsFile(data)
}

// ParseModelsFile decodes a models file from memory
func ParseModelsFile(data []byte) (*ModelsFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var mf ModelsFile
	if err := dec.Decode(&mf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse models file: %w", err)
	}
	for i := range mf.Models {
		// yaml decodes integers as int; store defaults in JSON shape
		if mf.Models[i].Defaults != nil {
			mf.Models[i].Defaults = value.CloneDocument(mf.Models[i].Defaults)
		}
	}
	return &mf, nil
}

// ModelsFileSchema returns the JSON schema of the models file format
func ModelsFileSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&ModelsFile{})
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
