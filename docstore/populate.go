package docstore

import (
	"context"
	"fmt"

	"github.com/arthur-debert/docstore/docstore/query"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// populate replaces reference ids at each spec's path with the referenced
// documents. References are collected across all docs and fetched with one
// read per spec. Unresolved scalars become nil and unresolved array
// elements are dropped.
func (m *Model) populate(ctx context.Context, docs []types.Document, specs []types.PopulateSpec) error {
	for _, spec := range specs {
		rel, ok := m.cfg.Relation(spec.Path)
		if !ok {
			m.logger.DebugContext(ctx, "populate path has no relation, skipping", "path", spec.Path)
			continue
		}
		target, ok := m.reg.Model(rel.Ref)
		if !ok {
			m.logger.DebugContext(ctx, "relation target is not registered, skipping",
				"path", spec.Path, "ref", rel.Ref)
			continue
		}

		byID, err := target.hydrate(ctx, collectRefs(docs, spec.Path), spec)
		if err != nil {
			return fmt.Errorf("failed to populate %s: %w", spec.Path, err)
		}

		for _, d := range docs {
			value.Transform(map[string]any(d), spec.Path, func(old any) any {
				return rehydrate(old, byID, spec)
			})
		}
	}
	return nil
}

// collectRefs returns the distinct reference ids found at path across docs
func collectRefs(docs []types.Document, path string) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range docs {
		for _, v := range value.Collect(map[string]any(d), path) {
			id, ok := value.NormalizeID(v)
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// hydrate fetches the referenced documents, populates their own relations
// and applies the Select projection of the populate options
func (m *Model) hydrate(ctx context.Context, refs []string, spec types.PopulateSpec) (map[string]types.Document, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	proj, err := query.ParseProjection(spec.Select)
	if err != nil {
		return nil, fmt.Errorf("invalid select: %w", err)
	}
	fetched, err := m.coll.ByIDs(ctx, refs)
	if err != nil {
		return nil, err
	}
	if len(spec.Populate) > 0 {
		if err := m.populate(ctx, fetched, spec.Populate); err != nil {
			return nil, err
		}
	}

	byID := make(map[string]types.Document, len(fetched))
	for _, d := range fetched {
		byID[d.ID()] = proj.Apply(d)
	}
	return byID, nil
}

func rehydrate(old any, byID map[string]types.Document, spec types.PopulateSpec) any {
	if arr, ok := value.AsSlice(old); ok {
		out := make([]any, 0, len(arr))
		for _, el := range arr {
			if h, ok := lookupRef(el, byID); ok {
				out = append(out, h)
			}
		}
		return paginate(out, spec.Skip, spec.Limit)
	}
	if h, ok := lookupRef(old, byID); ok {
		return h
	}
	return nil
}

func lookupRef(ref any, byID map[string]types.Document) (any, bool) {
	id, ok := value.NormalizeID(ref)
	if !ok {
		return nil, false
	}
	d, ok := byID[id]
	if !ok {
		return nil, false
	}
	return value.Clone(map[string]any(d)), true
}

func paginate(items []any, skip, limit int) []any {
	if skip >= len(items) {
		return []any{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
