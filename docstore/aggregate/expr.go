package aggregate

import (
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

const (
	rootVar    = "$$ROOT"
	currentVar = "$$CURRENT"
)

// Eval evaluates an aggregation expression against doc.
//
// Strings starting with "$" are field references, "$$ROOT" is the whole
// document. Mappings whose single key is a known operator apply it; other
// mappings are evaluated key by key and arrays element-wise. Anything else
// is a literal.
func Eval(expr any, doc types.Document) any {
	switch e := expr.(type) {
	case string:
		return evalRef(e, doc)
	case nil, bool, float64, int, int64:
		return e
	}

	if fields, ok := value.Fields(expr); ok {
		if len(fields) == 1 {
			if fn, ok := operators[fields[0].Key]; ok {
				return fn(fields[0].Value, doc)
			}
		}
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			out[f.Key] = Eval(f.Value, doc)
		}
		return out
	}
	if items, ok := value.Elements(expr); ok {
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = Eval(it, doc)
		}
		return out
	}
	return value.Clone(expr)
}

func evalRef(s string, doc types.Document) any {
	if !strings.HasPrefix(s, "$") {
		return s
	}
	for _, v := range []string{rootVar, currentVar} {
		if s == v {
			return map[string]any(doc)
		}
		if strings.HasPrefix(s, v+".") {
			s = "$" + strings.TrimPrefix(s, v+".")
			break
		}
	}
	if strings.HasPrefix(s, "$$") {
		return nil
	}
	v, ok := value.Resolve(map[string]any(doc), s[1:])
	if !ok {
		return nil
	}
	return v
}

type operator func(arg any, doc types.Document) any

var operators map[string]operator

func init() {
	operators = map[string]operator{
		"$size":    sizeOp,
		"$cond":    condOp,
		"$ifNull":  ifNullOp,
		"$eq":      eqOp,
		"$concat":  concatOp,
		"$literal": func(arg any, _ types.Document) any { return value.Clone(arg) },
	}
}

// args evaluates an operator's argument list. A non-array argument is a
// list of one.
func args(arg any, doc types.Document) []any {
	items, ok := value.Elements(arg)
	if !ok {
		return []any{Eval(arg, doc)}
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = Eval(it, doc)
	}
	return out
}

func sizeOp(arg any, doc types.Document) any {
	var v any
	if items, ok := value.Elements(arg); ok && len(items) == 1 {
		v = Eval(items[0], doc)
	} else {
		v = Eval(arg, doc)
	}
	if arr, ok := value.AsSlice(v); ok {
		return float64(len(arr))
	}
	if fields, ok := value.Fields(v); ok {
		return float64(len(fields))
	}
	if value.Truthy(v) {
		return 1.0
	}
	return 0.0
}

func condOp(arg any, doc types.Document) any {
	var cond, then, els any
	if items, ok := value.Elements(arg); ok {
		if len(items) != 3 {
			return nil
		}
		cond, then, els = items[0], items[1], items[2]
	} else if m, ok := value.ToMap(arg); ok {
		cond, then, els = m["if"], m["then"], m["else"]
	} else {
		return nil
	}
	if value.Truthy(Eval(cond, doc)) {
		return Eval(then, doc)
	}
	return Eval(els, doc)
}

func ifNullOp(arg any, doc types.Document) any {
	vals := args(arg, doc)
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func eqOp(arg any, doc types.Document) any {
	vals := args(arg, doc)
	if len(vals) != 2 {
		return false
	}
	return value.Equal(vals[0], vals[1])
}

func concatOp(arg any, doc types.Document) any {
	var b strings.Builder
	for _, v := range args(arg, doc) {
		if v == nil {
			return nil
		}
		b.WriteString(value.ToString(v))
	}
	return b.String()
}
