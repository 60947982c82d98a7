package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/docstore/docstore/query"
	"github.com/arthur-debert/docstore/types"
)

// Query is a lazily executed read. Modifiers may be chained in any order;
// execution always filters, then sorts, skips, limits, projects and
// finally populates.
type Query struct {
	model      *Model
	filter     any
	sort       []types.SortField
	skip       int
	limit      int
	projection *query.Projection
	populate   []types.PopulateSpec
	single     bool
	err        error

	// exec replaces the filter/sort/page steps for find-and-modify queries
	exec func(ctx context.Context, q *Query) ([]types.Document, error)
}

// Sort orders results by "a -b", []string, or an ordered mapping of
// path to direction
func (q *Query) Sort(spec any) *Query {
	fields, err := query.ParseSort(spec)
	if err != nil {
		q.setErr(fmt.Errorf("invalid sort: %w", err))
		return q
	}
	q.sort = fields
	return q
}

// Skip drops the first n results
func (q *Query) Skip(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.skip = n
	return q
}

// Limit keeps at most n results. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	if n < 0 {
		n = 0
	}
	q.limit = n
	return q
}

// Select projects results: "a b", "-password", or a 0/1 mapping
func (q *Query) Select(spec any) *Query {
	p, err := query.ParseProjection(spec)
	if err != nil {
		q.setErr(fmt.Errorf("invalid projection: %w", err))
		return q
	}
	q.projection = p
	return q
}

// Populate hydrates relation paths of the results
func (q *Query) Populate(specs ...types.PopulateSpec) *Query {
	q.populate = append(q.populate, specs...)
	return q
}

// PopulatePath hydrates the space-separated relation paths with default
// options
func (q *Query) PopulatePath(paths string) *Query {
	for _, p := range strings.Fields(paths) {
		q.populate = append(q.populate, types.PopulateSpec{Path: p})
	}
	return q
}

func (q *Query) setErr(err error) {
	if q.err == nil {
		q.err = err
	}
}

// ExecLean runs the query and returns plain documents
func (q *Query) ExecLean(ctx context.Context) ([]types.Document, error) {
	if q.err != nil {
		return nil, q.err
	}

	var (
		docs []types.Document
		err  error
	)
	if q.exec != nil {
		docs, err = q.exec(ctx, q)
	} else {
		docs, err = q.find(ctx)
	}
	if err != nil {
		return nil, err
	}

	if q.projection != nil {
		for i, d := range docs {
			docs[i] = q.projection.Apply(d)
		}
	}
	if len(q.populate) > 0 {
		if err := q.model.populate(ctx, docs, q.populate); err != nil {
			return nil, err
		}
	}
	if docs == nil {
		docs = []types.Document{}
	}
	q.model.logger.DebugContext(ctx, "query executed", "results", len(docs))
	return docs, nil
}

func (q *Query) find(ctx context.Context) ([]types.Document, error) {
	f, err := q.model.parseFilter(q.filter)
	if err != nil {
		return nil, err
	}
	docs, err := q.model.coll.Filtered(ctx, f)
	if err != nil {
		return nil, err
	}
	query.Sort(docs, q.sort)
	limit := q.limit
	if q.single {
		limit = 1
	}
	return query.Paginate(docs, q.skip, limit), nil
}

// Exec runs the query and wraps the results as records
func (q *Query) Exec(ctx context.Context) ([]*Record, error) {
	docs, err := q.ExecLean(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(docs))
	for i, d := range docs {
		records[i] = &Record{model: q.model, doc: d, partial: q.projection != nil}
	}
	return records, nil
}

// OneLean runs the query and returns the first document, or nil when
// nothing matched
func (q *Query) OneLean(ctx context.Context) (types.Document, error) {
	docs, err := q.ExecLean(ctx)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// One runs the query and returns the first record, or nil when nothing
// matched
func (q *Query) One(ctx context.Context) (*Record, error) {
	doc, err := q.OneLean(ctx)
	if err != nil || doc == nil {
		return nil, err
	}
	return &Record{model: q.model, doc: doc, partial: q.projection != nil}, nil
}
