package types

import "fmt"

// Reserved field names
const (
	IDField        = "_id"
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// Document is one stored record. Values are JSON-shaped: nil, bool, float64,
// string, []any and map[string]any. Every document that has passed through a
// collection carries an "_id".
type Document map[string]any

// ID returns the document identifier as a string, or "" if it has none
func (d Document) ID() string {
	switch id := d[IDField].(type) {
	case nil:
		return ""
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// SortField is one key of a multi-key sort
type SortField struct {
	Path string
	Desc bool
}

// PopulateSpec describes one reference path to hydrate on query results
type PopulateSpec struct {
	// Path is the relation path declared on the model (e.g. "authorId")
	Path string

	// Select is a projection applied to every hydrated document.
	// Accepts the same shapes as Query.Select ("name email", "-password",
	// []string, or a 0/1 mapping).
	Select any

	// Skip and Limit page array-valued references after unresolved ids
	// have been dropped. Zero means no skip / no limit.
	Skip  int
	Limit int

	// Populate hydrates relations of the target documents in turn
	Populate []PopulateSpec
}

// UpdateOptions configures find-and-update operations
type UpdateOptions struct {
	// Upsert inserts a document built from the filter and the update when
	// nothing matches
	Upsert bool

	// ReturnOriginal returns the pre-update snapshot instead of the updated
	// document. Inserted upserts always return the new document.
	ReturnOriginal bool
}
