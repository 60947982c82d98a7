package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// ParseSort accepts the sort shapes callers use: "a -b", []string{"a", "-b"},
// []types.SortField, or a mapping of path to direction (1/-1, "asc"/"desc").
// Use an ordered mapping (primitive.D) when there is more than one key; plain
// Go maps are read in sorted key order.
func ParseSort(spec any) ([]types.SortField, error) {
	switch s := spec.(type) {
	case nil:
		return nil, nil
	case []types.SortField:
		return s, nil
	case string:
		return parseSortList(strings.Fields(s)), nil
	case []string:
		return parseSortList(s), nil
	}

	fields, ok := value.Fields(spec)
	if !ok {
		return nil, fmt.Errorf("unsupported sort specification %T", spec)
	}
	out := make([]types.SortField, 0, len(fields))
	for _, f := range fields {
		out = append(out, types.SortField{Path: f.Key, Desc: descending(f.Value)})
	}
	return out, nil
}

func parseSortList(items []string) []types.SortField {
	out := make([]types.SortField, 0, len(items))
	for _, item := range items {
		switch {
		case strings.HasPrefix(item, "-"):
			out = append(out, types.SortField{Path: item[1:], Desc: true})
		case strings.HasPrefix(item, "+"):
			out = append(out, types.SortField{Path: item[1:]})
		case item != "":
			out = append(out, types.SortField{Path: item})
		}
	}
	return out
}

func descending(dir any) bool {
	if n, ok := value.ToNumber(dir); ok {
		return n < 0
	}
	switch strings.ToLower(value.ToString(dir)) {
	case "desc", "descending", "-1":
		return true
	}
	return false
}

// Sort orders docs in place by the given keys. Ties fall through to the next
// key; documents equal on every key keep their relative order.
func Sort(docs []types.Document, fields []types.SortField) {
	if len(fields) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b types.Document) int {
		for _, f := range fields {
			va, _ := value.Lookup(a, f.Path)
			vb, _ := value.Lookup(b, f.Path)
			c := value.CompareForSort(va, vb)
			if c == 0 {
				continue
			}
			if f.Desc {
				return -c
			}
			return c
		}
		return 0
	})
}

// Paginate applies skip and limit. Zero means no skip and no limit.
func Paginate(docs []types.Document, skip, limit int) []types.Document {
	if skip > 0 {
		if skip >= len(docs) {
			return []types.Document{}
		}
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
