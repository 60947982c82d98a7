package query

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Projection selects the fields returned for each document. It is either an
// inclusion set, which always keeps _id unless "-_id" is given, or an
// exclusion set. A spec mixing both is treated as an inclusion set.
type Projection struct {
	include   []string
	exclude   []string
	excludeID bool
}

// ParseProjection accepts "a b.c", "-password", []string{"a", "-b"}, or a
// mapping of path to 0/1 (or false/true). A nil or empty spec yields nil,
// meaning whole documents.
func ParseProjection(spec any) (*Projection, error) {
	if p, ok := spec.(*Projection); ok {
		return p, nil
	}
	var items []string
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case string:
		items = strings.Fields(s)
	case []string:
		items = s
	default:
		fields, ok := value.Fields(spec)
		if !ok {
			return nil, fmt.Errorf("unsupported projection %T", spec)
		}
		for _, f := range fields {
			if value.Truthy(f.Value) {
				items = append(items, f.Key)
			} else {
				items = append(items, "-"+f.Key)
			}
		}
	}

	p := &Projection{}
	for _, item := range items {
		switch {
		case item == "-"+types.IDField:
			p.excludeID = true
		case strings.HasPrefix(item, "-"):
			p.exclude = append(p.exclude, item[1:])
		case strings.HasPrefix(item, "+"):
			p.include = append(p.include, item[1:])
		case item != "":
			p.include = append(p.include, item)
		}
	}
	if len(p.include) == 0 && len(p.exclude) == 0 && !p.excludeID {
		return nil, nil
	}
	return p, nil
}

// Apply returns a projected copy of doc. A nil projection copies everything.
func (p *Projection) Apply(doc types.Document) types.Document {
	if p == nil {
		return value.CloneDocument(doc)
	}
	if len(p.include) > 0 {
		out := map[string]any{}
		if !p.excludeID {
			if id, ok := doc[types.IDField]; ok {
				out[types.IDField] = value.Clone(id)
			}
		}
		for _, path := range p.include {
			IncludePath(out, doc, path)
		}
		return types.Document(out)
	}

	out := value.CloneDocument(doc)
	for _, path := range p.exclude {
		ExcludePath(out, path)
	}
	if p.excludeID {
		delete(out, types.IDField)
	}
	return out
}

// IncludePath copies src's value at a dotted path into dst, broadcasting over
// arrays of sub-documents so "items.sku" keeps the sku of every item
func IncludePath(dst, src map[string]any, path string) {
	includePath(dst, src, strings.Split(path, "."))
}

func includePath(dst, src map[string]any, segs []string) {
	v, ok := src[segs[0]]
	if !ok {
		return
	}
	if len(segs) == 1 {
		dst[segs[0]] = value.Clone(v)
		return
	}
	if m, ok := value.AsMap(v); ok {
		child, ok := dst[segs[0]].(map[string]any)
		if !ok {
			child = map[string]any{}
			dst[segs[0]] = child
		}
		includePath(child, m, segs[1:])
		return
	}
	arr, ok := value.AsSlice(v)
	if !ok {
		return
	}
	existing, _ := dst[segs[0]].([]any)
	out := make([]any, 0, len(arr))
	for i, el := range arr {
		m, ok := value.AsMap(el)
		if !ok {
			continue
		}
		var child map[string]any
		if i < len(existing) {
			child, _ = existing[i].(map[string]any)
		}
		if child == nil {
			child = map[string]any{}
		}
		includePath(child, m, segs[1:])
		out = append(out, child)
	}
	dst[segs[0]] = out
}

// ExcludePath removes the value at a dotted path, broadcasting over arrays
func ExcludePath(m map[string]any, path string) {
	excludePath(m, strings.Split(path, "."))
}

func excludePath(m map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(m, segs[0])
		return
	}
	v, ok := m[segs[0]]
	if !ok {
		return
	}
	if child, ok := value.AsMap(v); ok {
		excludePath(child, segs[1:])
		return
	}
	if arr, ok := value.AsSlice(v); ok {
		for _, el := range arr {
			if child, ok := value.AsMap(el); ok {
				excludePath(child, segs[1:])
			}
		}
	}
}
