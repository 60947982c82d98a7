package query

import (
	"testing"

	"github.com/arthur-debert/docstore/types"
	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseSort(t *testing.T) {
	want := []types.SortField{{Path: "a"}, {Path: "b", Desc: true}}
	tests := []struct {
		name string
		spec any
	}{
		{"string", "a -b"},
		{"string with plus", "+a -b"},
		{"slice", []string{"a", "-b"}},
		{"ordered mapping", primitive.D{{Key: "a", Value: 1}, {Key: "b", Value: -1}}},
		{"map with words", map[string]any{"a": "asc", "b": "desc"}},
		{"sort fields", want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSort(tt.spec)
			if err != nil {
				t.Fatalf("ParseSort: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("ParseSort mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := ParseSort(42); err == nil {
		t.Error("expected error for numeric sort spec")
	}
}

func TestSortIsStable(t *testing.T) {
	docs := []types.Document{
		{"_id": "1", "a": 1.0, "b": 2.0},
		{"_id": "2", "a": 1.0, "b": 1.0},
	}
	Sort(docs, []types.SortField{{Path: "a"}})
	if docs[0].ID() != "1" || docs[1].ID() != "2" {
		t.Errorf("equal keys reordered: %v", docs)
	}
}

func TestSortMultiKey(t *testing.T) {
	docs := []types.Document{
		{"_id": "1", "team": "b", "score": 5.0},
		{"_id": "2", "team": "A", "score": 9.0},
		{"_id": "3", "team": "a", "score": 7.0},
		{"_id": "4", "score": 1.0},
		{"_id": "5", "team": "b", "score": 8.0},
	}
	Sort(docs, []types.SortField{{Path: "team"}, {Path: "score", Desc: true}})

	var got []string
	for _, d := range docs {
		got = append(got, d.ID())
	}
	// missing sorts first; team compares case-insensitively
	want := []string{"4", "2", "3", "5", "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sort order (-want +got):\n%s", diff)
	}
}

func TestSortDates(t *testing.T) {
	docs := []types.Document{
		{"_id": "late", "at": "2024-02-01T00:00:00.000Z"},
		{"_id": "early", "at": "2024-01-15"},
	}
	Sort(docs, []types.SortField{{Path: "at"}})
	if docs[0].ID() != "early" {
		t.Errorf("dates not sorted by instant: %v", docs)
	}
}

func TestPaginate(t *testing.T) {
	docs := []types.Document{{"_id": "1"}, {"_id": "2"}, {"_id": "3"}}
	tests := []struct {
		skip, limit int
		want        int
	}{
		{0, 0, 3},
		{1, 0, 2},
		{1, 1, 1},
		{5, 0, 0},
		{0, 10, 3},
	}
	for _, tt := range tests {
		if got := Paginate(docs, tt.skip, tt.limit); len(got) != tt.want {
			t.Errorf("Paginate(skip=%d, limit=%d) returned %d docs, want %d", tt.skip, tt.limit, len(got), tt.want)
		}
	}
}

func TestProjection(t *testing.T) {
	doc := types.Document{
		"_id":      "u1",
		"name":     "Amy",
		"email":    "amy@example.com",
		"password": "secret",
		"profile":  map[string]any{"city": "Lisbon", "zip": "1000"},
		"items": []any{
			map[string]any{"sku": "a", "qty": 1.0},
			map[string]any{"sku": "b", "qty": 2.0},
		},
	}

	tests := []struct {
		name string
		spec any
		want types.Document
	}{
		{
			name: "inclusion keeps _id",
			spec: "name email",
			want: types.Document{"_id": "u1", "name": "Amy", "email": "amy@example.com"},
		},
		{
			name: "inclusion without _id",
			spec: []string{"name", "-_id"},
			want: types.Document{"name": "Amy"},
		},
		{
			name: "nested inclusion",
			spec: map[string]any{"profile.city": 1, "items.sku": true},
			want: types.Document{
				"_id":     "u1",
				"profile": map[string]any{"city": "Lisbon"},
				"items":   []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
			},
		},
		{
			name: "exclusion",
			spec: "-password -profile.zip -items.qty",
			want: types.Document{
				"_id":     "u1",
				"name":    "Amy",
				"email":   "amy@example.com",
				"profile": map[string]any{"city": "Lisbon"},
				"items":   []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
			},
		},
		{
			name: "mapping of zeros",
			spec: primitive.D{{Key: "password", Value: 0}, {Key: "items", Value: 0}, {Key: "profile", Value: 0}},
			want: types.Document{"_id": "u1", "name": "Amy", "email": "amy@example.com"},
		},
		{
			name: "mixed spec is an inclusion",
			spec: "name -password",
			want: types.Document{"_id": "u1", "name": "Amy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProjection(tt.spec)
			if err != nil {
				t.Fatalf("ParseProjection: %v", err)
			}
			if diff := cmp.Diff(tt.want, p.Apply(doc)); diff != "" {
				t.Errorf("projection mismatch (-want +got):\n%s", diff)
			}
		})
	}

	p, err := ParseProjection("")
	if err != nil || p != nil {
		t.Errorf("empty projection = %v, %v; want nil", p, err)
	}
	if diff := cmp.Diff(doc, p.Apply(doc)); diff != "" {
		t.Errorf("nil projection should copy everything (-want +got):\n%s", diff)
	}
}
