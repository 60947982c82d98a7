package search

import (
	"sort"
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
)

// Tokenize splits a query on whitespace and case-folds each token
func Tokenize(query string) []string {
	return strings.Fields(value.Fold(query))
}

// Text renders the case-folded searchable text of doc: the values at the
// given paths, or every value in the document when fields is empty
func Text(doc types.Document, fields []string) string {
	var parts []string
	if len(fields) == 0 {
		parts = leaves(doc, parts)
	} else {
		for _, f := range fields {
			for _, v := range value.Collect(doc, f) {
				parts = leaves(v, parts)
			}
		}
	}
	return value.Fold(strings.Join(parts, " "))
}

// MatchesAll reports whether every token occurs in text
func MatchesAll(text string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

// leaves appends the string form of every scalar reachable from v
func leaves(v any, dst []string) []string {
	if v == nil {
		return dst
	}
	if fields, ok := value.Fields(v); ok {
		for _, f := range fields {
			dst = leaves(f.Value, dst)
		}
		return dst
	}
	if arr, ok := value.Elements(v); ok {
		for _, el := range arr {
			dst = leaves(el, dst)
		}
		return dst
	}
	return append(dst, value.ToString(v))
}

// leafPaths lists the dotted paths of every scalar field in doc, skipping
// _id. Arrays count as one field.
func leafPaths(doc types.Document) []string {
	var out []string
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		if m, ok := value.AsMap(v); ok {
			for k, child := range m {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				walk(p, child)
			}
			return
		}
		if prefix != "" && prefix != types.IDField && v != nil {
			out = append(out, prefix)
		}
	}
	walk("", map[string]any(doc))
	sort.Strings(out)
	return out
}
