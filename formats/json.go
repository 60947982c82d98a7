package formats

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// JSON writes the same pretty-printed array a collection file holds
var JSON = &Format{
	Name:      "json",
	Extension: ".json",
	Encode: func(w io.Writer, docs []types.Document) error {
		if docs == nil {
			docs = []types.Document{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		return nil
	},
	Decode: func(r io.Reader) ([]types.Document, error) {
		var raw []map[string]any
		if err := json.NewDecoder(r).Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		return toDocuments(raw), nil
	},
}

func toDocuments(raw []map[string]any) []types.Document {
	docs := make([]types.Document, len(raw))
	for i, m := range raw {
		docs[i] = value.CloneDocument(m)
	}
	return docs
}

func init() {
	mustRegister(JSON)
}
