package aggregate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

type accumulator struct {
	field string
	op    string
	expr  any
}

type groupStage struct {
	id   any
	accs []accumulator
}

var accumulators = map[string]bool{
	"$sum": true, "$avg": true, "$first": true, "$last": true,
	"$min": true, "$max": true, "$push": true, "$addToSet": true,
}

func parseGroup(arg any) (stage, error) {
	fields, ok := value.Fields(arg)
	if !ok {
		return nil, fmt.Errorf("$group needs an object, got %T", arg)
	}
	s := groupStage{}
	hasID := false
	for _, f := range fields {
		if f.Key == types.IDField {
			s.id, hasID = f.Value, true
			continue
		}
		spec, ok := value.Fields(f.Value)
		if !ok || len(spec) != 1 {
			return nil, fmt.Errorf("$group field %s needs a single accumulator", f.Key)
		}
		if !accumulators[spec[0].Key] {
			return nil, fmt.Errorf("unknown accumulator %s on %s", spec[0].Key, f.Key)
		}
		s.accs = append(s.accs, accumulator{field: f.Key, op: spec[0].Key, expr: spec[0].Value})
	}
	if !hasID {
		return nil, fmt.Errorf("$group needs an _id expression")
	}
	return s, nil
}

type bucket struct {
	id   any
	docs []types.Document
}

func (s groupStage) run(_ context.Context, docs []types.Document, _ Source) ([]types.Document, error) {
	var order []*bucket
	byKey := map[string]*bucket{}
	for _, d := range docs {
		id := value.Clone(Eval(s.id, d))
		key, err := groupKey(id)
		if err != nil {
			return nil, fmt.Errorf("failed to compute group key: %w", err)
		}
		b, ok := byKey[key]
		if !ok {
			b = &bucket{id: id}
			byKey[key] = b
			order = append(order, b)
		}
		b.docs = append(b.docs, d)
	}

	out := make([]types.Document, 0, len(order))
	for _, b := range order {
		res := types.Document{types.IDField: b.id}
		for _, acc := range s.accs {
			res[acc.field] = acc.reduce(b.docs)
		}
		out = append(out, res)
	}
	return out, nil
}

// groupKey is the canonical JSON of an evaluated _id; map keys marshal
// sorted, so equal mappings share a bucket
func groupKey(id any) (string, error) {
	data, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a accumulator) reduce(docs []types.Document) any {
	switch a.op {
	case "$sum", "$avg":
		total := 0.0
		for _, d := range docs {
			if n, ok := value.ToNumber(Eval(a.expr, d)); ok {
				total += n
			}
		}
		if a.op == "$sum" {
			return total
		}
		if len(docs) == 0 {
			return 0.0
		}
		return total / float64(len(docs))
	case "$first":
		return value.Clone(Eval(a.expr, docs[0]))
	case "$last":
		return value.Clone(Eval(a.expr, docs[len(docs)-1]))
	case "$min", "$max":
		var best any
		for _, d := range docs {
			v := Eval(a.expr, d)
			if v == nil {
				continue
			}
			c := value.CompareForSort(v, best)
			if best == nil || (a.op == "$min" && c < 0) || (a.op == "$max" && c > 0) {
				best = v
			}
		}
		return value.Clone(best)
	case "$push", "$addToSet":
		out := []any{}
		for _, d := range docs {
			v := value.Clone(Eval(a.expr, d))
			if a.op == "$addToSet" && containsEqual(out, v) {
				continue
			}
			out = append(out, v)
		}
		return out
	}
	return nil
}

func containsEqual(arr []any, v any) bool {
	for _, el := range arr {
		if value.Equal(el, v) {
			return true
		}
	}
	return false
}
