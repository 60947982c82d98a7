package formats

import (
	"errors"
	"fmt"
	"io"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
	"go.mongodb.org/mongo-driver/bson"
)

// BSON writes documents back to back, the layout mongodump and
// mongorestore use for a collection
var BSON = &Format{
	Name:      "bson",
	Extension: ".bson",
	Encode: func(w io.Writer, docs []types.Document) error {
		for _, d := range docs {
			data, err := bson.Marshal(map[string]any(d))
			if err != nil {
				return fmt.Errorf("failed to encode document %s: %w", d.ID(), err)
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("failed to write BSON: %w", err)
			}
		}
		return nil
	},
	Decode: func(r io.Reader) ([]types.Document, error) {
		docs := []types.Document{}
		for {
			raw, err := bson.NewFromIOReader(r)
			if errors.Is(err, io.EOF) {
				return docs, nil
			}
			if err != nil {
				return nil, fmt.Errorf("failed to read BSON document %d: %w", len(docs), err)
			}
			var m bson.M
			if err := bson.Unmarshal(raw, &m); err != nil {
				return nil, fmt.Errorf("failed to decode BSON document %d: %w", len(docs), err)
			}
			doc, _ := value.ToDocument(m)
			docs = append(docs, doc)
		}
	},
}

func init() {
	mustRegister(BSON)
}
