package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/arthur-debert/docstore/docstore/filter"
	"github.com/arthur-debert/docstore/docstore/query"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

type matchStage struct{ f *filter.Filter }

func (s matchStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	out := make([]types.Document, 0, len(docs))
	for _, d := range docs {
		if s.f.Match(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

type sortStage struct{ fields []types.SortField }

func parseSort(arg any) (stage, error) {
	fields, err := query.ParseSort(arg)
	if err != nil {
		return nil, err
	}
	return sortStage{fields: fields}, nil
}

func (s sortStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	query.Sort(docs, s.fields)
	return docs, nil
}

type limitStage struct{ n int }

func (s limitStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	if s.n == 0 {
		return docs[:0], nil
	}
	return query.Paginate(docs, 0, s.n), nil
}

type skipStage struct{ n int }

func (s skipStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	return query.Paginate(docs, s.n, 0), nil
}

type countStage struct{ field string }

func (s countStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	return []types.Document{{s.field: float64(len(docs))}}, nil
}

type passStage struct {
	name   string
	logger *slog.Logger
}

func (s passStage) run(ctx context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	s.logger.DebugContext(ctx, "unknown aggregation stage, passing through", "stage", s.name)
	return docs, nil
}

type projectField struct {
	path string
	keep bool
	drop bool
	expr any
}

type projectStage struct {
	fields    []projectField
	inclusion bool
	dropID    bool
}

func parseProject(arg any) (stage, error) {
	fields, ok := value.Fields(arg)
	if !ok {
		return nil, fmt.Errorf("$project needs an object, got %T", arg)
	}
	s := projectStage{}
	for _, f := range fields {
		pf := projectField{path: f.Key}
		switch v := f.Value.(type) {
		case bool:
			pf.keep, pf.drop = v, !v
		case string:
			pf.expr = v
		default:
			if n, ok := value.ToNumber(v); ok {
				pf.keep, pf.drop = n != 0, n == 0
			} else {
				pf.expr = v
			}
		}
		if f.Key == types.IDField {
			if pf.drop {
				s.dropID = true
				continue
			}
			if pf.keep {
				continue
			}
		}
		if !pf.drop {
			s.inclusion = true
		}
		s.fields = append(s.fields, pf)
	}
	return s, nil
}

func (s projectStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	out := make([]types.Document, len(docs))
	for i, d := range docs {
		out[i] = s.project(d)
	}
	return out, nil
}

func (s projectStage) project(doc types.Document) types.Document {
	src := map[string]any(doc)
	if !s.inclusion {
		res := value.CloneDocument(doc)
		for _, f := range s.fields {
			query.ExcludePath(res, f.path)
		}
		if s.dropID {
			delete(res, types.IDField)
		}
		return res
	}

	res := map[string]any{}
	if id, ok := doc[types.IDField]; ok && !s.dropID {
		res[types.IDField] = value.Clone(id)
	}
	for _, f := range s.fields {
		switch {
		case f.drop:
			query.ExcludePath(res, f.path)
		case f.keep:
			query.IncludePath(res, src, f.path)
		default:
			value.SetPath(res, f.path, value.Clone(Eval(f.expr, doc)))
		}
	}
	return types.Document(res)
}

type addFieldsStage struct{ fields []value.Field }

func parseAddFields(arg any) (stage, error) {
	fields, ok := value.Fields(arg)
	if !ok {
		return nil, fmt.Errorf("$addFields needs an object, got %T", arg)
	}
	return addFieldsStage{fields: fields}, nil
}

func (s addFieldsStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	out := make([]types.Document, len(docs))
	for i, d := range docs {
		res := value.CloneDocument(d)
		for _, f := range s.fields {
			// evaluated against the input so fields do not see each other
			value.SetPath(res, f.Key, value.Clone(Eval(f.Value, d)))
		}
		out[i] = res
	}
	return out, nil
}

type unwindStage struct {
	path     string
	preserve bool
}

func parseUnwind(arg any) (stage, error) {
	s := unwindStage{}
	switch v := arg.(type) {
	case string:
		s.path = v
	default:
		m, ok := value.ToMap(arg)
		if !ok {
			return nil, fmt.Errorf("$unwind needs a path, got %T", arg)
		}
		s.path, _ = m["path"].(string)
		s.preserve = value.Truthy(m["preserveNullAndEmptyArrays"])
	}
	if !strings.HasPrefix(s.path, "$") || len(s.path) < 2 {
		return nil, fmt.Errorf("$unwind path must start with $, got %q", s.path)
	}
	s.path = s.path[1:]
	return s, nil
}

func (s unwindStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	var out []types.Document
	for _, d := range docs {
		elems := value.Collect(map[string]any(d), s.path)
		if len(elems) == 1 && elems[0] == nil {
			elems = nil
		}
		if len(elems) == 0 {
			if s.preserve {
				res := value.CloneDocument(d)
				value.SetPath(res, s.path, nil)
				out = append(out, res)
			}
			continue
		}
		for _, variant := range value.Expand(map[string]any(d), s.path) {
			res, _ := value.Clone(variant).(map[string]any)
			out = append(out, types.Document(res))
		}
	}
	return out, nil
}

type lookupStage struct {
	from, localField, foreignField, as string
	logger                             *slog.Logger
}

func parseLookup(arg any, logger *slog.Logger) (stage, error) {
	m, ok := value.ToMap(arg)
	if !ok {
		return nil, fmt.Errorf("$lookup needs an object, got %T", arg)
	}
	s := lookupStage{logger: logger}
	for key, dst := range map[string]*string{
		"from":         &s.from,
		"localField":   &s.localField,
		"foreignField": &s.foreignField,
		"as":           &s.as,
	} {
		str, ok := m[key].(string)
		if !ok || str == "" {
			return nil, fmt.Errorf("$lookup needs %s", key)
		}
		*dst = str
	}
	return s, nil
}

func (s lookupStage) run(ctx context.Context, docs []types.Document, src Source) ([]types.Document, error) {
	if src == nil {
		s.logger.DebugContext(ctx, "no lookup source, skipping $lookup", "from", s.from)
		return docs, nil
	}
	foreign, ok, err := src.Documents(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to load lookup collection %s: %w", s.from, err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "lookup target is not registered, skipping", "from", s.from)
		return docs, nil
	}

	index := map[string][]int{}
	for i, fd := range foreign {
		for _, v := range value.Collect(map[string]any(fd), s.foreignField) {
			if key, ok := value.NormalizeID(v); ok {
				index[key] = append(index[key], i)
			}
		}
	}

	out := make([]types.Document, len(docs))
	for i, d := range docs {
		var hits []int
		for _, v := range value.Collect(map[string]any(d), s.localField) {
			key, ok := value.NormalizeID(v)
			if !ok {
				continue
			}
			for _, idx := range index[key] {
				if !slices.Contains(hits, idx) {
					hits = append(hits, idx)
				}
			}
		}
		slices.Sort(hits)
		matches := make([]any, len(hits))
		for j, idx := range hits {
			matches[j] = value.Clone(map[string]any(foreign[idx]))
		}
		res := value.CloneDocument(d)
		value.SetPath(res, s.as, matches)
		out[i] = res
	}
	return out, nil
}
