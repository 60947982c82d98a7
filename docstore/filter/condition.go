package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/arthur-debert/docstore/internal/value"
	"github.com/arthur-debert/docstore/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// candidates are the values a path resolved to in one document
type candidates struct {
	// terminal values, arrays kept whole
	whole []any
	// terminal values with arrays flattened one level; [nil] when missing
	flat []any
}

func newCandidates(gathered []any) candidates {
	c := candidates{whole: gathered}
	if len(gathered) == 0 {
		c.flat = []any{nil}
		return c
	}
	for _, g := range gathered {
		if arr, ok := value.AsSlice(g); ok {
			c.flat = append(c.flat, arr...)
			continue
		}
		c.flat = append(c.flat, g)
	}
	return c
}

type cond interface {
	match(c candidates) bool
}

// Condition is a parsed per-value condition, as found on the right-hand side
// of a field clause. It is used on its own by $pull and $elemMatch.
type Condition struct {
	c cond
}

// ParseCondition parses a literal or operator object into a Condition
func ParseCondition(expr any, opts ...ParseOption) (Condition, error) {
	p := &parser{}
	for _, opt := range opts {
		opt(p)
	}
	c, err := p.condition(expr)
	if err != nil {
		return Condition{}, err
	}
	return Condition{c: c}, nil
}

// Matches reports whether v satisfies the condition. An array v is matched
// element-wise, like a field holding that array.
func (c Condition) Matches(v any) bool {
	if c.c == nil {
		return true
	}
	return c.c.match(newCandidates([]any{v}))
}

func isOperatorObject(fields []value.Field) bool {
	for _, f := range fields {
		if strings.HasPrefix(f.Key, "$") {
			return true
		}
	}
	return false
}

func (p *parser) condition(v any) (cond, error) {
	switch t := v.(type) {
	case primitive.Regex:
		return compileRegex(t.Pattern, t.Options)
	case *regexp.Regexp:
		return regexCond{re: t}, nil
	}

	fields, ok := value.Fields(v)
	if !ok {
		return eqCond{v: value.Clone(v)}, nil
	}
	if !isOperatorObject(fields) {
		sub, err := p.parse(v)
		if err != nil {
			return nil, err
		}
		return nestedCond{sub: sub}, nil
	}

	var (
		conds    []cond
		pattern  any
		options  string
		hasRegex bool
	)
	for _, f := range fields {
		switch f.Key {
		case "$eq":
			conds = append(conds, eqCond{v: value.Clone(f.Value)})
		case "$ne":
			conds = append(conds, someNot{eqCond{v: value.Clone(f.Value)}})
		case "$in":
			in, err := p.inList(f.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, in)
		case "$nin":
			in, err := p.inList(f.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, someNot{in})
		case "$exists":
			conds = append(conds, existsCond{want: value.Truthy(f.Value)})
		case "$regex":
			pattern, hasRegex = f.Value, true
		case "$options":
			options = value.ToString(f.Value)
		case "$gt", "$gte", "$lt", "$lte":
			conds = append(conds, rangeCond{op: f.Key, bound: value.Clone(f.Value)})
		case "$size":
			if n, ok := value.ToNumber(f.Value); ok {
				conds = append(conds, sizeCond{n: int(n)})
			}
		case "$all":
			items, _ := value.Elements(f.Value)
			all := allCond{}
			for _, it := range items {
				all.vals = append(all.vals, value.Clone(it))
			}
			conds = append(conds, all)
		case "$elemMatch":
			em, err := p.elemMatch(f.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, em)
		case "$not":
			inner, err := p.condition(f.Value)
			if err != nil {
				return nil, err
			}
			conds = append(conds, notCond{inner})
		}
	}

	if hasRegex {
		var (
			rc  cond
			err error
		)
		switch t := pattern.(type) {
		case primitive.Regex:
			opts := t.Options
			if options != "" {
				opts = options
			}
			rc, err = compileRegex(t.Pattern, opts)
		case *regexp.Regexp:
			rc = regexCond{re: t}
		default:
			rc, err = compileRegex(value.ToString(pattern), options)
		}
		if err != nil {
			return nil, err
		}
		conds = append(conds, rc)
	}

	if len(conds) == 1 {
		return conds[0], nil
	}
	return conjunction(conds), nil
}

func (p *parser) inList(v any) (inCond, error) {
	items, ok := value.Elements(v)
	if !ok {
		items = []any{v}
	}
	in := inCond{}
	for _, it := range items {
		switch t := it.(type) {
		case primitive.Regex:
			rc, err := compileRegex(t.Pattern, t.Options)
			if err != nil {
				return inCond{}, err
			}
			in.patterns = append(in.patterns, rc.re)
		case *regexp.Regexp:
			in.patterns = append(in.patterns, t)
		default:
			in.vals = append(in.vals, value.Clone(it))
		}
	}
	return in, nil
}

func (p *parser) elemMatch(v any) (cond, error) {
	fields, ok := value.Fields(v)
	if !ok {
		return elemMatchCond{}, nil
	}
	if isOperatorObject(fields) {
		c, err := p.condition(v)
		if err != nil {
			return nil, err
		}
		return elemMatchCond{cond: c}, nil
	}
	sub, err := p.parse(v)
	if err != nil {
		return nil, err
	}
	return elemMatchCond{sub: sub}, nil
}

// conjunction holds when every operator of one condition object holds
type conjunction []cond

func (cs conjunction) match(c candidates) bool {
	for _, x := range cs {
		if !x.match(c) {
			return false
		}
	}
	return true
}

type notCond struct{ inner cond }

func (n notCond) match(c candidates) bool { return !n.inner.match(c) }

// someNot holds when at least one candidate fails inner on its own, so
// {tags: {$ne: "go"}} matches ["go", "db"]. A missing field is one nil
// candidate.
type someNot struct{ inner cond }

func (s someNot) match(c candidates) bool {
	for _, f := range c.flat {
		if !s.inner.match(newCandidates([]any{f})) {
			return true
		}
	}
	return false
}

type eqCond struct{ v any }

func (e eqCond) match(c candidates) bool {
	for _, w := range c.whole {
		if _, isArr := value.AsSlice(w); isArr && value.Equal(w, e.v) {
			return true
		}
	}
	for _, f := range c.flat {
		if value.Equal(f, e.v) {
			return true
		}
	}
	return false
}

type inCond struct {
	vals     []any
	patterns []*regexp.Regexp
}

func (in inCond) match(c candidates) bool {
	for _, v := range in.vals {
		if (eqCond{v: v}).match(c) {
			return true
		}
	}
	for _, re := range in.patterns {
		if (regexCond{re: re}).match(c) {
			return true
		}
	}
	return false
}

type existsCond struct{ want bool }

func (e existsCond) match(c candidates) bool {
	present := false
	for _, w := range c.whole {
		if w != nil {
			present = true
			break
		}
	}
	return present == e.want
}

type regexCond struct{ re *regexp.Regexp }

func (r regexCond) match(c candidates) bool {
	for _, f := range c.flat {
		if f == nil {
			continue
		}
		if r.re.MatchString(value.ToString(f)) {
			return true
		}
	}
	return false
}

type rangeCond struct {
	op    string
	bound any
}

func (r rangeCond) match(c candidates) bool {
	for _, f := range c.flat {
		if f == nil {
			continue
		}
		cmp, ok := value.Compare(f, r.bound)
		if !ok {
			continue
		}
		switch r.op {
		case "$gt":
			ok = cmp > 0
		case "$gte":
			ok = cmp >= 0
		case "$lt":
			ok = cmp < 0
		case "$lte":
			ok = cmp <= 0
		}
		if ok {
			return true
		}
	}
	return false
}

type sizeCond struct{ n int }

func (s sizeCond) match(c candidates) bool {
	for _, w := range c.whole {
		if arr, ok := value.AsSlice(w); ok && len(arr) == s.n {
			return true
		}
	}
	return false
}

type allCond struct{ vals []any }

func (a allCond) match(c candidates) bool {
	if len(a.vals) == 0 {
		return false
	}
	for _, v := range a.vals {
		if !(eqCond{v: v}).match(c) {
			return false
		}
	}
	return true
}

type elemMatchCond struct {
	sub  *Filter
	cond cond
}

func (e elemMatchCond) match(c candidates) bool {
	if e.sub == nil && e.cond == nil {
		return false
	}
	for _, w := range c.whole {
		arr, ok := value.AsSlice(w)
		if !ok {
			continue
		}
		for _, el := range arr {
			if e.cond != nil {
				if e.cond.match(newCandidates([]any{el})) {
					return true
				}
				continue
			}
			if m, ok := value.AsMap(el); ok && e.sub.Match(types.Document(m)) {
				return true
			}
		}
	}
	return false
}

// nestedCond applies a sub-filter, relative to the candidate, to every
// candidate that is a mapping
type nestedCond struct{ sub *Filter }

func (n nestedCond) match(c candidates) bool {
	for _, f := range c.flat {
		if m, ok := value.AsMap(f); ok && n.sub.Match(types.Document(m)) {
			return true
		}
	}
	return false
}

var regexCache sync.Map // pattern + "/" + flags -> *regexp.Regexp

func compileRegex(pattern, options string) (regexCond, error) {
	flags := ""
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags, o) {
				flags += string(o)
			}
		}
	}
	key := pattern + "/" + flags
	if re, ok := regexCache.Load(key); ok {
		return regexCond{re: re.(*regexp.Regexp)}, nil
	}
	expr := pattern
	if flags != "" {
		expr = "(?" + flags + ")" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return regexCond{}, fmt.Errorf("invalid $regex %q: %w", pattern, err)
	}
	regexCache.Store(key, re)
	return regexCond{re: re}, nil
}
