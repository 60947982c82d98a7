package docstore

import (
	"context"
	"fmt"

	"github.com/arthur-debert/docstore/docstore/storage"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Record is a document bound to its model, as returned by New and by
// non-lean queries. A record is not safe for concurrent mutation.
type Record struct {
	model *Model
	doc   types.Document
	isNew bool

	// partial records were read through a projection and hold only some
	// of the stored fields
	partial bool
}

// ID returns the record's _id
func (r *Record) ID() string {
	return r.doc.ID()
}

// IsNew reports whether the record has never been saved
func (r *Record) IsNew() bool {
	return r.isNew
}

// Get returns the value at a dotted path, or nil
func (r *Record) Get(path string) any {
	v, _ := value.Lookup(map[string]any(r.doc), path)
	return v
}

// Set writes a value at a dotted path
func (r *Record) Set(path string, v any) {
	value.SetPath(r.doc, path, value.Clone(v))
}

// Doc returns the live document. Changes to it are saved by Save.
func (r *Record) Doc() types.Document {
	return r.doc
}

// ToObject returns a deep copy of the document
func (r *Record) ToObject() types.Document {
	return value.CloneDocument(r.doc)
}

// Save inserts a new record or replaces the stored document with the same
// _id. Populated relations are stored as ids. A record read through a
// projection is merged over the stored document instead, so fields left out
// of the projection are kept.
func (r *Record) Save(ctx context.Context) error {
	m := r.model
	m.assignSubDocumentIDs(r.doc)
	m.touch(r.doc)
	stored := m.depopulate(value.CloneDocument(r.doc))

	if r.isNew {
		if err := m.coll.Insert(ctx, stored); err != nil {
			return fmt.Errorf("failed to save %s: %w", m.cfg.Name, err)
		}
		r.doc[types.IDField] = stored[types.IDField]
		r.isNew = false
		return nil
	}
	if r.partial {
		return r.saveFields(ctx, stored)
	}
	if err := m.coll.Upsert(ctx, stored); err != nil {
		return fmt.Errorf("failed to save %s: %w", m.cfg.Name, err)
	}
	return nil
}

func (r *Record) saveFields(ctx context.Context, fields types.Document) error {
	m := r.model
	id := fields.ID()
	if id == "" {
		return fmt.Errorf("failed to save %s: record was selected without _id", m.cfg.Name)
	}
	err := m.coll.Modify(ctx, func(docs []types.Document) ([]types.Document, bool, error) {
		for i, d := range docs {
			if d.ID() == id {
				merged := value.CloneDocument(d)
				mergeFields(merged, fields)
				docs[i] = merged
				return docs, true, nil
			}
		}
		return nil, false, fmt.Errorf("%w: %s", ErrRecordGone, id)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", m.cfg.Name, err)
	}
	return nil
}

// mergeFields copies src over dst, descending into objects present on both
// sides
func mergeFields(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			mergeFields(existing, sub)
			continue
		}
		dst[k] = v
	}
}

// Populate hydrates relation paths of this record in place
func (r *Record) Populate(ctx context.Context, specs ...types.PopulateSpec) error {
	return r.model.populate(ctx, []types.Document{r.doc}, specs)
}

// Delete removes the stored document. Deleting a record that was never
// saved, or was already removed, is not an error.
func (r *Record) Delete(ctx context.Context) error {
	id := r.ID()
	_, err := r.model.coll.DeleteMany(ctx, storage.MatchFunc(func(d types.Document) bool {
		return d.ID() == id
	}))
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", r.model.cfg.Name, id, err)
	}
	r.isNew = true
	return nil
}
