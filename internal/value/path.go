package value

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Gather resolves a dotted path with array broadcast and returns the values
// found at the terminal segment, without flattening terminal arrays.
//
// A segment applied to an array is broadcast over every element, unless the
// segment is a non-negative integer, in which case it indexes the array.
func Gather(v any, path string) []any {
	segs := splitPath(path)
	if len(segs) == 0 {
		return []any{v}
	}
	cur := []any{v}
	for _, seg := range segs {
		var next []any
		for _, c := range cur {
			next = appendSegment(next, c, seg)
		}
		if len(next) == 0 {
			return nil
		}
		cur = next
	}
	return cur
}

// Collect is Gather with terminal arrays flattened one level. This is the
// broadcast rule shared by filtering, population, $unwind and $lookup.
func Collect(v any, path string) []any {
	found := Gather(v, path)
	out := make([]any, 0, len(found))
	for _, f := range found {
		if arr, ok := AsSlice(f); ok {
			out = append(out, arr...)
			continue
		}
		out = append(out, f)
	}
	return out
}

func appendSegment(dst []any, c any, seg string) []any {
	if val, ok := key(c, seg); ok {
		return append(dst, val)
	}
	arr, ok := AsSlice(c)
	if !ok {
		return dst
	}
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 {
		if idx < len(arr) {
			dst = append(dst, arr[idx])
		}
		return dst
	}
	for _, el := range arr {
		dst = appendSegment(dst, el, seg)
	}
	return dst
}

func key(c any, k string) (any, bool) {
	if m, ok := AsMap(c); ok {
		v, ok := m[k]
		return v, ok
	}
	if d, ok := c.(primitive.D); ok {
		for _, e := range d {
			if e.Key == k {
				return e.Value, true
			}
		}
	}
	return nil, false
}

// Expand returns one copy of v per value Collect(v, path) yields, in the same
// order, with that value written at path. Arrays broadcast over on the way
// are replaced by the element the value came from, so Lookup of the path on
// each copy gives the value. Copies share unchanged subtrees with v.
func Expand(v any, path string) []any {
	return expand(v, splitPath(path))
}

func expand(c any, segs []string) []any {
	if len(segs) == 0 {
		if arr, ok := AsSlice(c); ok {
			return append([]any(nil), arr...)
		}
		return []any{c}
	}
	if m, ok := ToMap(c); ok {
		child, ok := m[segs[0]]
		if !ok {
			return nil
		}
		var out []any
		for _, sub := range expand(child, segs[1:]) {
			cp := make(map[string]any, len(m))
			for k, v := range m {
				cp[k] = v
			}
			cp[segs[0]] = sub
			out = append(out, cp)
		}
		return out
	}
	arr, ok := AsSlice(c)
	if !ok {
		return nil
	}
	if idx, err := strconv.Atoi(segs[0]); err == nil && idx >= 0 {
		if idx >= len(arr) {
			return nil
		}
		var out []any
		for _, sub := range expand(arr[idx], segs[1:]) {
			cp := append([]any(nil), arr...)
			cp[idx] = sub
			out = append(out, cp)
		}
		return out
	}
	var out []any
	for _, el := range arr {
		out = append(out, expand(el, segs)...)
	}
	return out
}

// Lookup resolves a dotted path without broadcast. Arrays are only entered
// through integer segments.
func Lookup(v any, path string) (any, bool) {
	cur := v
	for _, seg := range splitPath(path) {
		if val, ok := key(cur, seg); ok {
			cur = val
			continue
		}
		arr, ok := AsSlice(cur)
		if !ok {
			return nil, false
		}
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(arr) {
			return nil, false
		}
		cur = arr[idx]
	}
	return cur, true
}

// Resolve is the expression form of a path lookup: the concrete value when
// the path never crosses an array, otherwise the broadcast results as a slice.
func Resolve(v any, path string) (any, bool) {
	return resolve(v, splitPath(path))
}

func resolve(c any, segs []string) (any, bool) {
	if len(segs) == 0 {
		return c, true
	}
	if val, ok := key(c, segs[0]); ok {
		return resolve(val, segs[1:])
	}
	arr, ok := AsSlice(c)
	if !ok {
		return nil, false
	}
	if idx, err := strconv.Atoi(segs[0]); err == nil && idx >= 0 {
		if idx >= len(arr) {
			return nil, false
		}
		return resolve(arr[idx], segs[1:])
	}
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		if r, ok := resolve(el, segs); ok {
			out = append(out, r)
		}
	}
	return out, true
}

// SetPath writes v at a dotted path, creating intermediate mappings as
// needed. It reports false when an intermediate value is neither a mapping
// nor an indexable array.
func SetPath(doc map[string]any, path string, v any) bool {
	segs := splitPath(path)
	if len(segs) == 0 || doc == nil {
		return false
	}
	var cur any = doc
	for i, seg := range segs {
		last := i == len(segs)-1
		if m, ok := AsMap(cur); ok {
			if last {
				m[seg] = v
				return true
			}
			next, exists := m[seg]
			if !exists || next == nil {
				created := map[string]any{}
				m[seg] = created
				cur = created
				continue
			}
			cur = next
			continue
		}
		arr, ok := AsSlice(cur)
		if !ok {
			return false
		}
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(arr) {
			return false
		}
		if last {
			arr[idx] = v
			return true
		}
		if arr[idx] == nil {
			created := map[string]any{}
			arr[idx] = created
			cur = created
			continue
		}
		cur = arr[idx]
	}
	return false
}

// DeletePath removes the value at a dotted path. Array elements addressed by
// index are set to nil rather than removed, keeping sibling positions stable.
func DeletePath(doc map[string]any, path string) bool {
	segs := splitPath(path)
	if len(segs) == 0 {
		return false
	}
	parent, ok := Lookup(doc, joinPath(segs[:len(segs)-1]))
	if !ok {
		return false
	}
	last := segs[len(segs)-1]
	if m, ok := AsMap(parent); ok {
		if _, exists := m[last]; !exists {
			return false
		}
		delete(m, last)
		return true
	}
	if arr, ok := AsSlice(parent); ok {
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(arr) {
			return false
		}
		arr[idx] = nil
		return true
	}
	return false
}

// Transform replaces every value reachable at path, broadcasting over
// arrays like Gather. Missing keys are left missing.
func Transform(v any, path string, fn func(old any) any) {
	transform(v, splitPath(path), fn)
}

func transform(c any, segs []string, fn func(any) any) {
	if len(segs) == 0 {
		return
	}
	seg := segs[0]
	if m, ok := AsMap(c); ok {
		old, exists := m[seg]
		if !exists {
			return
		}
		if len(segs) == 1 {
			m[seg] = fn(old)
			return
		}
		transform(old, segs[1:], fn)
		return
	}
	arr, ok := AsSlice(c)
	if !ok {
		return
	}
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 {
		if idx >= len(arr) {
			return
		}
		if len(segs) == 1 {
			arr[idx] = fn(arr[idx])
			return
		}
		transform(arr[idx], segs[1:], fn)
		return
	}
	for _, el := range arr {
		transform(el, segs, fn)
	}
}

func joinPath(segs []string) string {
	out := ""
	for i, s := range segs {
		if i > 0 {
			out += "."
		}
		out += s
	}
	return out
}
