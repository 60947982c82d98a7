package value

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/text/cases"
)

// TimeLayout is the ISO-8601 layout timestamps are stored with
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Layouts accepted when reading a date-like string
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatTime renders t in UTC as an ISO-8601 string with millisecond precision
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an ISO-date-like string. Strings that do not start with a
// YYYY-MM-DD date are rejected without trying any layout.
func ParseTime(s string) (time.Time, bool) {
	if !dateLike(s) {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func dateLike(s string) bool {
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for _, i := range []int{0, 1, 2, 3, 5, 6, 8, 9} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Fold returns the case-folded form of s used for case-insensitive matching
func Fold(s string) string {
	return cases.Fold().String(s)
}

type kind int

const (
	kindNull kind = iota
	kindNumber
	kindString
	kindOther
	kindBool
	kindTime
)

type sortKey struct {
	kind kind
	num  float64
	str  string
	t    time.Time
	b    bool
}

func toComparable(v any) sortKey {
	switch t := v.(type) {
	case nil:
		return sortKey{kind: kindNull}
	case bool:
		return sortKey{kind: kindBool, b: t}
	case string:
		if ts, ok := ParseTime(t); ok {
			return sortKey{kind: kindTime, t: ts}
		}
		return sortKey{kind: kindString, str: Fold(t)}
	case time.Time:
		return sortKey{kind: kindTime, t: t}
	case *time.Time:
		if t == nil {
			return sortKey{kind: kindNull}
		}
		return sortKey{kind: kindTime, t: *t}
	case primitive.DateTime:
		return sortKey{kind: kindTime, t: t.Time()}
	case primitive.ObjectID:
		return sortKey{kind: kindString, str: t.Hex()}
	}
	if f, ok := ToNumber(v); ok {
		return sortKey{kind: kindNumber, num: f}
	}
	if IsMapping(v) {
		if id, ok := NormalizeID(v); ok {
			return sortKey{kind: kindString, str: Fold(id)}
		}
	}
	return sortKey{kind: kindOther}
}

// Compare orders two values after normalization: timestamps and ISO-date-like
// strings compare by instant, other strings case-insensitively, references
// (mappings carrying _id or id) by their id. The second result is false when
// the values are not mutually comparable.
func Compare(a, b any) (int, bool) {
	ca, cb := toComparable(a), toComparable(b)
	if ca.kind != cb.kind {
		return 0, false
	}
	switch ca.kind {
	case kindNull:
		return 0, true
	case kindNumber:
		switch {
		case ca.num < cb.num:
			return -1, true
		case ca.num > cb.num:
			return 1, true
		}
		return 0, true
	case kindString:
		return strings.Compare(ca.str, cb.str), true
	case kindTime:
		return ca.t.Compare(cb.t), true
	case kindBool:
		switch {
		case ca.b == cb.b:
			return 0, true
		case !ca.b:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// CompareForSort is a total order for sorting: comparable values use Compare,
// everything else falls back to a rank by kind (null < number < string <
// other < bool < time).
func CompareForSort(a, b any) int {
	if c, ok := Compare(a, b); ok {
		return c
	}
	ka, kb := toComparable(a).kind, toComparable(b).kind
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}

// NormalizeID extracts the canonical id string of a reference, which may be
// a bare scalar or a (previously populated) mapping carrying _id or id
func NormalizeID(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return FormatTime(t), true
	case primitive.ObjectID:
		return t.Hex(), true
	case primitive.DateTime:
		return FormatTime(t.Time()), true
	}
	if f, ok := ToNumber(v); ok {
		return formatNumber(f), true
	}
	if IsMapping(v) {
		for _, k := range []string{"_id", "id"} {
			if id, ok := key(v, k); ok && id != nil {
				return NormalizeID(id)
			}
		}
	}
	return "", false
}

// Equal is the equality used by literal filters and set operators: both nil,
// the same instant for timestamps, the same normalized id for scalars and
// references, or deep equality for arrays and plain mappings.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, cb := toComparable(a), toComparable(b)
	if ca.kind == kindTime && cb.kind == kindTime {
		return ca.t.Equal(cb.t)
	}
	ia, okA := NormalizeID(a)
	ib, okB := NormalizeID(b)
	if okA && okB {
		return ia == ib
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(Clone(a), Clone(b))
}
