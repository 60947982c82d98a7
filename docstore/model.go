package docstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arthur-debert/docstore/docstore/aggregate"
	"github.com/arthur-debert/docstore/docstore/filter"
	"github.com/arthur-debert/docstore/docstore/query"
	"github.com/arthur-debert/docstore/docstore/storage"
	"github.com/arthur-debert/docstore/docstore/update"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/search"
	"github.com/arthur-debert/docstore/types"
)

// Model is the handle of one registered collection
type Model struct {
	cfg    types.ModelConfig
	coll   *storage.Collection
	reg    *Registry
	logger *slog.Logger
}

// Name returns the model name
func (m *Model) Name() string {
	return m.cfg.Name
}

// Config returns the descriptor the model was defined with
func (m *Model) Config() types.ModelConfig {
	return m.cfg
}

// Path returns the backing file path
func (m *Model) Path() string {
	return m.coll.Path()
}

// New builds an unsaved record from the model defaults and fields
func (m *Model) New(fields types.Document) *Record {
	return &Record{model: m, doc: m.construct(fields), isNew: true}
}

// Create builds records for docs and inserts them together. Nothing is
// inserted if any _id is already taken.
func (m *Model) Create(ctx context.Context, docs ...types.Document) ([]*Record, error) {
	records := make([]*Record, len(docs))
	stored := make([]types.Document, len(docs))
	for i, d := range docs {
		r := m.New(d)
		m.touch(r.doc)
		records[i] = r
		stored[i] = m.depopulate(value.CloneDocument(r.doc))
	}
	if err := m.coll.Insert(ctx, stored...); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", m.cfg.Name, err)
	}
	for _, r := range records {
		r.isNew = false
	}
	return records, nil
}

// Find returns a query over every document matching filter
func (m *Model) Find(filter any) *Query {
	return &Query{model: m, filter: filter}
}

// FindOne returns a query for the first document matching filter
func (m *Model) FindOne(filter any) *Query {
	return &Query{model: m, filter: filter, single: true}
}

// FindByID returns a query for the document with the given _id
func (m *Model) FindByID(id any) *Query {
	return m.FindOne(idFilter(id))
}

// FindOneAndUpdate updates the first document matching filter, in the
// query's sort order. The query yields the updated document, or the
// original with ReturnOriginal, or nothing when no document matched and
// Upsert is off.
func (m *Model) FindOneAndUpdate(filterExpr, updateExpr any, opts types.UpdateOptions) *Query {
	q := &Query{model: m, filter: filterExpr, single: true}
	q.exec = func(ctx context.Context, q *Query) ([]types.Document, error) {
		f, err := m.parseFilter(q.filter)
		if err != nil {
			return nil, err
		}
		u, err := update.Parse(updateExpr)
		if err != nil {
			return nil, fmt.Errorf("invalid update: %w", err)
		}

		var result types.Document
		err = m.coll.Modify(ctx, func(docs []types.Document) ([]types.Document, bool, error) {
			if i := firstMatch(docs, f, q.sort); i >= 0 {
				original := value.CloneDocument(docs[i])
				doc := value.CloneDocument(docs[i])
				u.Apply(doc, update.Options{})
				m.assignSubDocumentIDs(doc)
				m.touch(doc)
				if idTaken(docs, doc.ID(), i) {
					return nil, false, fmt.Errorf("%w: %s", storage.ErrDuplicateID, doc.ID())
				}
				docs[i] = doc
				result = value.CloneDocument(doc)
				if opts.ReturnOriginal {
					result = original
				}
				return docs, true, nil
			}
			if !opts.Upsert {
				return docs, false, nil
			}

			doc := upsertSeed(f)
			u.Apply(doc, update.Options{IsInsert: true})
			doc = m.construct(doc)
			m.touch(doc)
			if idTaken(docs, doc.ID(), -1) {
				return nil, false, fmt.Errorf("%w: %s", storage.ErrDuplicateID, doc.ID())
			}
			result = value.CloneDocument(doc)
			m.logger.DebugContext(ctx, "upsert inserted document", "id", doc.ID())
			return append(docs, doc), true, nil
		})
		if err != nil {
			return nil, err
		}
		if result == nil {
			return nil, nil
		}
		return []types.Document{result}, nil
	}
	return q
}

// idTaken reports whether a document other than docs[skip] has the given _id
func idTaken(docs []types.Document, id string, skip int) bool {
	for i, d := range docs {
		if i != skip && d.ID() == id {
			return true
		}
	}
	return false
}

// FindByIDAndUpdate is FindOneAndUpdate on {_id: id}
func (m *Model) FindByIDAndUpdate(id, updateExpr any, opts types.UpdateOptions) *Query {
	return m.FindOneAndUpdate(idFilter(id), updateExpr, opts)
}

// FindOneAndDelete removes the first document matching filter, in the
// query's sort order, and yields it
func (m *Model) FindOneAndDelete(filterExpr any) *Query {
	q := &Query{model: m, filter: filterExpr, single: true}
	q.exec = func(ctx context.Context, q *Query) ([]types.Document, error) {
		f, err := m.parseFilter(q.filter)
		if err != nil {
			return nil, err
		}
		var removed types.Document
		err = m.coll.Modify(ctx, func(docs []types.Document) ([]types.Document, bool, error) {
			i := firstMatch(docs, f, q.sort)
			if i < 0 {
				return docs, false, nil
			}
			removed = value.CloneDocument(docs[i])
			out := make([]types.Document, 0, len(docs)-1)
			out = append(out, docs[:i]...)
			return append(out, docs[i+1:]...), true, nil
		})
		if err != nil || removed == nil {
			return nil, err
		}
		return []types.Document{removed}, nil
	}
	return q
}

// FindByIDAndDelete is FindOneAndDelete on {_id: id}
func (m *Model) FindByIDAndDelete(id any) *Query {
	return m.FindOneAndDelete(idFilter(id))
}

// DeleteMany removes every document matching filter and returns how many
// were removed
func (m *Model) DeleteMany(ctx context.Context, filterExpr any) (int, error) {
	f, err := m.parseFilter(filterExpr)
	if err != nil {
		return 0, err
	}
	return m.coll.DeleteMany(ctx, f)
}

// CountDocuments returns the number of documents matching filter
func (m *Model) CountDocuments(ctx context.Context, filterExpr any) (int, error) {
	f, err := m.parseFilter(filterExpr)
	if err != nil {
		return 0, err
	}
	return m.coll.Count(ctx, f)
}

// Aggregate runs a pipeline over the whole collection. $lookup stages
// resolve other models of the same registry.
func (m *Model) Aggregate(ctx context.Context, pipeline any) ([]types.Document, error) {
	p, err := aggregate.Parse(pipeline,
		aggregate.WithLogger(m.logger),
		aggregate.WithTextFields(m.cfg.TextFields),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	docs, err := m.coll.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	out, err := p.Run(ctx, docs, m.reg)
	if err != nil {
		return nil, fmt.Errorf("failed to run pipeline on %s: %w", m.cfg.Name, err)
	}
	m.logger.DebugContext(ctx, "aggregation finished", "stages", p.Len(), "input", len(docs), "output", len(out))
	return out, nil
}

// Search ranks documents by relevance to a free-text query. Without
// explicit fields the model's text fields are searched.
func (m *Model) Search(ctx context.Context, opts search.SearchOptions) ([]search.SearchResult, error) {
	if len(opts.Fields) == 0 {
		opts.Fields = m.cfg.TextFields
	}
	engine := search.NewEngine(search.DocumentProviderFunc(m.coll.Snapshot))
	return engine.Search(ctx, opts)
}

func (m *Model) parseFilter(expr any) (*filter.Filter, error) {
	f, err := filter.Parse(expr, filter.WithTextFields(m.cfg.TextFields))
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return f, nil
}

// construct deep-merges fields over the model defaults and assigns the
// document and sub-document ids
func (m *Model) construct(fields types.Document) types.Document {
	doc := types.Document{}
	if m.cfg.Defaults != nil {
		doc = value.CloneDocument(m.cfg.Defaults)
	}
	if fields != nil {
		mergeDefaults(doc, value.CloneDocument(fields))
	}
	if doc[types.IDField] == nil {
		doc[types.IDField] = m.reg.newID()
	}
	m.assignSubDocumentIDs(doc)
	return doc
}

func mergeDefaults(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeDefaults(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// assignSubDocumentIDs gives every object element of the declared
// sub-document arrays an _id
func (m *Model) assignSubDocumentIDs(doc types.Document) {
	for _, path := range m.cfg.SubDocumentArrays {
		for _, el := range value.Collect(map[string]any(doc), path) {
			if sub, ok := value.AsMap(el); ok && sub[types.IDField] == nil {
				sub[types.IDField] = m.reg.newID()
			}
		}
	}
}

// touch maintains createdAt/updatedAt on timestamped models
func (m *Model) touch(doc types.Document) {
	if !m.cfg.Timestamps {
		return
	}
	now := value.FormatTime(m.reg.now())
	if doc[types.CreatedAtField] == nil {
		doc[types.CreatedAtField] = now
	}
	doc[types.UpdatedAtField] = now
}

// depopulate replaces hydrated relation values with their ids
func (m *Model) depopulate(doc types.Document) types.Document {
	for _, rel := range m.cfg.Relations {
		value.Transform(map[string]any(doc), rel.Path, func(old any) any {
			if arr, ok := value.AsSlice(old); ok {
				out := make([]any, len(arr))
				for i, el := range arr {
					out[i] = refOf(el)
				}
				return out
			}
			return refOf(old)
		})
	}
	return doc
}

// refOf returns the id of a populated document, or v itself
func refOf(v any) any {
	if sub, ok := value.AsMap(v); ok {
		if id, ok := sub[types.IDField]; ok {
			return id
		}
		if id, ok := sub["id"]; ok {
			return id
		}
	}
	return v
}

func idFilter(id any) map[string]any {
	if s, ok := value.NormalizeID(id); ok {
		return map[string]any{types.IDField: s}
	}
	return map[string]any{types.IDField: id}
}

// upsertSeed builds the document inserted by an upsert from the literal
// equality fields of its filter
func upsertSeed(f *filter.Filter) types.Document {
	doc := types.Document{}
	for _, field := range f.EqualityFields() {
		value.SetPath(doc, field.Key, value.Clone(field.Value))
	}
	return doc
}

// firstMatch returns the index of the first document matching f in sort
// order, or -1
func firstMatch(docs []types.Document, f *filter.Filter, sort []types.SortField) int {
	var matched []types.Document
	index := map[string]int{}
	for i, d := range docs {
		if !f.Match(d) {
			continue
		}
		if len(sort) == 0 {
			return i
		}
		matched = append(matched, d)
		index[d.ID()] = i
	}
	if len(matched) == 0 {
		return -1
	}
	query.Sort(matched, sort)
	return index[matched[0].ID()]
}
