// Package filter parses MongoDB-style filter expressions into a tree of
// clauses and matches documents against it.
//
// A filter is a mapping from field path (or logical operator) to either a
// literal value, meaning equality, or an operator object such as
// {"$gte": 3, "$lt": 10}. Paths are resolved with array broadcast, and a
// field clause holds when any candidate value satisfies it. That includes
// $ne and $nin, which test each candidate on its own; $not negates the whole
// clause instead.
//
// Parsing happens once per query; matching never re-inspects the original
// expression.
package filter

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/search"
	"github.com/arthur-debert/docstore/types"
)

// Filter is a parsed filter expression. The zero value and nil both match
// every document.
type Filter struct {
	clauses []clause
}

type clause interface {
	match(doc types.Document) bool
}

// ParseOption configures Parse
type ParseOption func(*parser)

// WithTextFields restricts $text to the given paths instead of the whole document
func WithTextFields(fields []string) ParseOption {
	return func(p *parser) {
		p.textFields = fields
	}
}

type parser struct {
	textFields []string
}

// Parse builds a Filter from a mapping (map[string]any, types.Document,
// primitive.D, ...). A nil expression matches everything. The only errors
// are a non-mapping expression and an invalid regular expression; unknown
// operators are ignored.
func Parse(expr any, opts ...ParseOption) (*Filter, error) {
	if f, ok := expr.(*Filter); ok {
		return f, nil
	}
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}
	if expr == nil {
		return &Filter{}, nil
	}
	return p.parse(expr)
}

// MustParse is Parse for expressions known to be valid
func MustParse(expr any, opts ...ParseOption) *Filter {
	f, err := Parse(expr, opts...)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *parser) parse(expr any) (*Filter, error) {
	fields, ok := value.Fields(expr)
	if !ok {
		return nil, fmt.Errorf("filter must be a mapping, got %T", expr)
	}

	f := &Filter{}
	for _, field := range fields {
		var (
			c   clause
			err error
		)
		switch field.Key {
		case "$and", "$or", "$nor":
			c, err = p.logical(field.Key, field.Value)
		case "$text":
			c = p.text(field.Value)
		default:
			if strings.HasPrefix(field.Key, "$") {
				// unknown top-level operator
				continue
			}
			var cnd cond
			cnd, err = p.condition(field.Value)
			c = fieldClause{path: field.Key, cond: cnd, raw: field.Value}
		}
		if err != nil {
			return nil, err
		}
		if c != nil {
			f.clauses = append(f.clauses, c)
		}
	}
	return f, nil
}

func (p *parser) logical(op string, v any) (clause, error) {
	items, ok := value.Elements(v)
	if !ok {
		return nil, nil
	}
	subs := make([]*Filter, 0, len(items))
	for _, item := range items {
		sub, err := p.parse(item)
		if err != nil {
			return nil, fmt.Errorf("invalid %s clause: %w", op, err)
		}
		subs = append(subs, sub)
	}
	switch op {
	case "$and":
		return andClause{subs}, nil
	case "$or":
		return orClause{subs}, nil
	}
	return norClause{subs}, nil
}

func (p *parser) text(v any) clause {
	query := ""
	if s, ok := v.(string); ok {
		query = s
	} else if fields, ok := value.Fields(v); ok {
		for _, f := range fields {
			if f.Key == "$search" {
				query = value.ToString(f.Value)
			}
		}
	}
	return textClause{tokens: search.Tokenize(query), fields: p.textFields}
}

// Match reports whether doc satisfies every clause
func (f *Filter) Match(doc types.Document) bool {
	if f == nil {
		return true
	}
	for _, c := range f.clauses {
		if !c.match(doc) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter has no clauses
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.clauses) == 0
}

// EqualityFields returns the literal equality constraints of the filter,
// including those nested in $and. They seed the document built by an upsert.
func (f *Filter) EqualityFields() []value.Field {
	if f == nil {
		return nil
	}
	var out []value.Field
	for _, c := range f.clauses {
		switch t := c.(type) {
		case fieldClause:
			switch cnd := t.cond.(type) {
			case eqCond:
				out = append(out, value.Field{Key: t.path, Value: cnd.v})
			case nestedCond:
				out = append(out, value.Field{Key: t.path, Value: value.Clone(t.raw)})
			}
		case andClause:
			for _, sub := range t.subs {
				out = append(out, sub.EqualityFields()...)
			}
		}
	}
	return out
}

type andClause struct{ subs []*Filter }

func (c andClause) match(doc types.Document) bool {
	for _, s := range c.subs {
		if !s.Match(doc) {
			return false
		}
	}
	return true
}

type orClause struct{ subs []*Filter }

func (c orClause) match(doc types.Document) bool {
	for _, s := range c.subs {
		if s.Match(doc) {
			return true
		}
	}
	return false
}

type norClause struct{ subs []*Filter }

func (c norClause) match(doc types.Document) bool {
	return !orClause(c).match(doc)
}

type textClause struct {
	tokens []string
	fields []string
}

func (c textClause) match(doc types.Document) bool {
	return search.MatchesAll(search.Text(doc, c.fields), c.tokens)
}

type fieldClause struct {
	path string
	cond cond
	raw  any
}

func (c fieldClause) match(doc types.Document) bool {
	return c.cond.match(newCandidates(value.Gather(map[string]any(doc), c.path)))
}
