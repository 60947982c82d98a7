// Package value implements the operations shared by every engine component
// over semi-structured document values: deep cloning, dotted path addressing
// with array broadcast, comparison and id normalization.
//
// Values are JSON-shaped (nil, bool, float64, string, []any, map[string]any).
// Inputs built in Go may also carry integer kinds, time.Time, types.Document
// and the ordered bson types (primitive.D, primitive.M, primitive.A); Clone
// normalizes all of them to the JSON shape, so documents held in a collection
// look the same in memory as they do on disk.
package value

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arthur-debert/docstore/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field is one key/value pair of a mapping, in iteration order
type Field struct {
	Key   string
	Value any
}

// Clone deep-copies v into its JSON shape. Timestamps become ISO-8601
// strings and integer kinds become float64.
func Clone(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string, bool, float64:
		return t
	case types.Document:
		return cloneMap(t)
	case map[string]any:
		return cloneMap(t)
	case primitive.M:
		return cloneMap(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = Clone(e.Value)
		}
		return out
	case []any:
		return cloneSlice(t)
	case primitive.A:
		return cloneSlice(t)
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTime(*t)
	case primitive.DateTime:
		return FormatTime(t.Time())
	case primitive.ObjectID:
		return t.Hex()
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	if f, ok := ToNumber(v); ok {
		return f
	}
	return cloneReflect(v)
}

// CloneDocument deep-copies a document
func CloneDocument(d types.Document) types.Document {
	if d == nil {
		return nil
	}
	return types.Document(cloneMap(d))
}

// ToDocument converts any mapping shape into a freshly cloned Document
func ToDocument(v any) (types.Document, bool) {
	if _, ok := Fields(v); !ok {
		return nil, false
	}
	m, ok := Clone(v).(map[string]any)
	if !ok {
		return nil, false
	}
	return types.Document(m), true
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = Clone(v)
	}
	return out
}

// cloneReflect handles typed slices and maps built in Go code
// ([]string, map[string]int, ...)
func cloneReflect(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Clone(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fmt.Sprint(v)
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Clone(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Clone(rv.Elem().Interface())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// AsMap returns the underlying mutable map of a mapping value
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case types.Document:
		return t, true
	case primitive.M:
		return t, true
	}
	return nil, false
}

// ToMap returns the fields of any mapping shape, including primitive.D, as a
// map. The result may be a fresh map and must not be used to mutate v.
func ToMap(v any) (map[string]any, bool) {
	if m, ok := AsMap(v); ok {
		return m, true
	}
	fields, ok := Fields(v)
	if !ok {
		return nil, false
	}
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	return m, true
}

// AsSlice returns the underlying slice of an array value
func AsSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case primitive.A:
		return t, true
	}
	return nil, false
}

// IsMapping reports whether v is any supported mapping shape
func IsMapping(v any) bool {
	if _, ok := AsMap(v); ok {
		return true
	}
	_, ok := v.(primitive.D)
	return ok
}

// Fields returns the key/value pairs of a mapping. Ordered inputs
// (primitive.D) keep their order; Go maps are iterated by sorted key.
func Fields(v any) ([]Field, bool) {
	if d, ok := v.(primitive.D); ok {
		out := make([]Field, len(d))
		for i, e := range d {
			out[i] = Field{Key: e.Key, Value: e.Value}
		}
		return out, true
	}
	m, ok := AsMap(v)
	if !ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		m, ok = cloneReflect(v).(map[string]any)
		if !ok {
			return nil, false
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Field, len(keys))
	for i, k := range keys {
		out[i] = Field{Key: k, Value: m[k]}
	}
	return out, true
}

// Elements returns the elements of any slice shape
func Elements(v any) ([]any, bool) {
	if s, ok := AsSlice(v); ok {
		return s, true
	}
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ToNumber converts numeric kinds to float64
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(n.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// ToString coerces a value to its string form. Mappings and arrays render
// as compact JSON.
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return FormatTime(t)
	case primitive.DateTime:
		return FormatTime(t.Time())
	}
	if f, ok := ToNumber(v); ok {
		return formatNumber(f)
	}
	data, err := json.Marshal(Clone(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// Truthy follows JavaScript truthiness: nil, false, 0, NaN and "" are false
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := ToNumber(v); ok {
		return f != 0 && f == f
	}
	return true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// splitPath splits a dotted path, ignoring empty segments
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
