// Package update parses and applies update expressions.
//
// An expression with no "$" key is a replacement merge: nested mappings
// merge key by key, arrays and scalars overwrite. Otherwise it is a set of
// operators ($set, $setOnInsert, $unset, $inc, $push, $addToSet, $pull)
// applied in expression order, with $setOnInsert always applied last and
// only when the document is being inserted by an upsert.
package update

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/docstore/docstore/filter"
	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Options controls how an update is applied
type Options struct {
	// IsInsert marks the fallback document of an upsert; it enables
	// $setOnInsert and writes to _id
	IsInsert bool
}

// Update is a parsed update expression
type Update struct {
	merge    map[string]any
	ops      []op
	onInsert []op
}

type op interface {
	apply(doc map[string]any, opts Options)
}

// Parse builds an Update. A nil expression is an update that changes nothing.
func Parse(expr any) (*Update, error) {
	if u, ok := expr.(*Update); ok {
		return u, nil
	}
	if expr == nil {
		return &Update{}, nil
	}
	fields, ok := value.Fields(expr)
	if !ok {
		return nil, fmt.Errorf("update must be a mapping, got %T", expr)
	}

	u := &Update{}
	if !hasOperator(fields) {
		u.merge = value.Clone(expr).(map[string]any)
		return u, nil
	}

	for _, f := range fields {
		pairs, ok := value.Fields(f.Value)
		if !ok {
			continue
		}
		for _, pair := range pairs {
			o, err := parseOp(f.Key, pair)
			if err != nil {
				return nil, err
			}
			if o == nil {
				continue
			}
			if f.Key == "$setOnInsert" {
				u.onInsert = append(u.onInsert, o)
				continue
			}
			u.ops = append(u.ops, o)
		}
	}
	return u, nil
}

func hasOperator(fields []value.Field) bool {
	for _, f := range fields {
		if strings.HasPrefix(f.Key, "$") {
			return true
		}
	}
	return false
}

func parseOp(operator string, pair value.Field) (op, error) {
	path, arg := pair.Key, value.Clone(pair.Value)
	switch operator {
	case "$set":
		return setOp{path: path, v: arg}, nil
	case "$setOnInsert":
		return setOnInsertOp{path: path, v: arg}, nil
	case "$unset":
		return unsetOp{path: path}, nil
	case "$inc":
		n, ok := value.ToNumber(arg)
		if !ok {
			return nil, nil
		}
		return incOp{path: path, n: n}, nil
	case "$push":
		return pushOp{path: path, items: eachItems(arg)}, nil
	case "$addToSet":
		return pushOp{path: path, items: eachItems(arg), unique: true}, nil
	case "$pull":
		c, err := filter.ParseCondition(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid $pull on %s: %w", path, err)
		}
		return pullOp{path: path, cond: c}, nil
	}
	return nil, nil
}

// eachItems unwraps {$each: [...]}; any other argument is a single item
func eachItems(arg any) []any {
	if m, ok := value.ToMap(arg); ok {
		if each, ok := m["$each"]; ok {
			if items, ok := value.AsSlice(each); ok {
				return items
			}
		}
	}
	return []any{arg}
}

// IsEmpty reports whether applying the update cannot change a document
func (u *Update) IsEmpty() bool {
	return u == nil || (len(u.merge) == 0 && len(u.ops) == 0 && len(u.onInsert) == 0)
}

// Apply mutates doc in place
func (u *Update) Apply(doc types.Document, opts Options) {
	if u == nil {
		return
	}
	m := map[string]any(doc)
	if u.merge != nil {
		mergeInto(m, value.Clone(u.merge).(map[string]any), opts.IsInsert)
		return
	}
	for _, o := range u.ops {
		o.apply(m, opts)
	}
	if opts.IsInsert {
		for _, o := range u.onInsert {
			o.apply(m, opts)
		}
	}
}

// mergeInto merges src into dst: mappings recurse, everything else
// overwrites. _id is only written on insert.
func mergeInto(dst, src map[string]any, isInsert bool) {
	for k, v := range src {
		if k == types.IDField && !isInsert {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				mergeInto(existing, sub, true)
				continue
			}
		}
		dst[k] = v
	}
}

func protectedID(path string, opts Options) bool {
	return !opts.IsInsert && (path == types.IDField || strings.HasPrefix(path, types.IDField+"."))
}

type setOp struct {
	path string
	v    any
}

func (o setOp) apply(doc map[string]any, opts Options) {
	if protectedID(o.path, opts) {
		return
	}
	value.SetPath(doc, o.path, value.Clone(o.v))
}

type setOnInsertOp struct {
	path string
	v    any
}

func (o setOnInsertOp) apply(doc map[string]any, opts Options) {
	if current, ok := value.Lookup(doc, o.path); ok && current != nil {
		return
	}
	value.SetPath(doc, o.path, value.Clone(o.v))
}

type unsetOp struct{ path string }

func (o unsetOp) apply(doc map[string]any, opts Options) {
	if protectedID(o.path, opts) {
		return
	}
	value.DeletePath(doc, o.path)
}

type incOp struct {
	path string
	n    float64
}

func (o incOp) apply(doc map[string]any, opts Options) {
	if protectedID(o.path, opts) {
		return
	}
	current, ok := value.Lookup(doc, o.path)
	if !ok || current == nil {
		value.SetPath(doc, o.path, o.n)
		return
	}
	if n, ok := value.ToNumber(current); ok {
		value.SetPath(doc, o.path, n+o.n)
	}
}

type pushOp struct {
	path   string
	items  []any
	unique bool
}

func (o pushOp) apply(doc map[string]any, opts Options) {
	if protectedID(o.path, opts) {
		return
	}
	var arr []any
	if current, ok := value.Lookup(doc, o.path); ok && current != nil {
		existing, isArr := value.AsSlice(current)
		if !isArr {
			return
		}
		arr = existing
	}
	for _, it := range o.items {
		if o.unique && containsEqual(arr, it) {
			continue
		}
		arr = append(arr, value.Clone(it))
	}
	if arr == nil {
		arr = []any{}
	}
	value.SetPath(doc, o.path, arr)
}

func containsEqual(arr []any, v any) bool {
	for _, el := range arr {
		if value.Equal(el, v) {
			return true
		}
	}
	return false
}

type pullOp struct {
	path string
	cond filter.Condition
}

func (o pullOp) apply(doc map[string]any, opts Options) {
	current, ok := value.Lookup(doc, o.path)
	if !ok {
		return
	}
	arr, isArr := value.AsSlice(current)
	if !isArr {
		return
	}
	kept := make([]any, 0, len(arr))
	for _, el := range arr {
		if !o.cond.Matches(el) {
			kept = append(kept, el)
		}
	}
	value.SetPath(doc, o.path, kept)
}
