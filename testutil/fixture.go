package testutil

import (
	"context"
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/types"
	"gopkg.in/yaml.v3"
)

//go:embed testdata/blog.json
var blogJSON []byte

// Clock is the fixed time used by fixture registries
var Clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// BlogData provides typed access to the blog fixture
type BlogData struct {
	Registry *docstore.Registry
	Dir      string

	Users    *docstore.Model // u1 Amy (admin), u2 Bo, u3 Cy (has a password)
	Comments *docstore.Model // c1 by u2, c2 by u3, c3 by u1
	Posts    *docstore.Model // p1 by u1 (published), p2 by u2 (draft), p3 by u1 (published)
}

type fixtureData struct {
	Users    []types.Document `json:"users"`
	Comments []types.Document `json:"comments"`
	Posts    []types.Document `json:"posts"`
}

// UserModel, CommentModel and PostModel are the fixture model descriptors
var (
	UserModel = types.ModelConfig{
		Name:       "users",
		Defaults:   types.Document{"role": "member", "active": true},
		TextFields: []string{"name", "bio"},
		Timestamps: true,
	}
	CommentModel = types.ModelConfig{
		Name:      "comments",
		Relations: []types.Relation{{Path: "author", Ref: "users"}},
	}
	PostModel = types.ModelConfig{
		Name:     "posts",
		Defaults: types.Document{"status": "draft", "tags": []any{}},
		Relations: []types.Relation{
			{Path: "author", Ref: "users"},
			{Path: "comments", Ref: "comments", Array: true},
		},
		TextFields:        []string{"title", "body"},
		SubDocumentArrays: []string{"revisions"},
		Timestamps:        true,
	}
)

// NewRegistry returns an empty registry over a temporary directory with a
// fixed clock
func NewRegistry(t *testing.T, opts ...docstore.Option) *docstore.Registry {
	t.Helper()
	opts = append([]docstore.Option{docstore.WithTimeFunc(func() time.Time { return Clock })}, opts...)
	reg := docstore.NewRegistry(t.TempDir(), opts...)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

// LoadBlog returns a registry with the users, comments and posts models
// populated from testdata/blog.json
func LoadBlog(t *testing.T, opts ...docstore.Option) *BlogData {
	t.Helper()

	reg := NewRegistry(t, opts...)
	blog := &BlogData{Registry: reg, Dir: reg.DataDir()}

	var err error
	if blog.Users, err = reg.Define(UserModel); err != nil {
		t.Fatalf("failed to define users: %v", err)
	}
	if blog.Comments, err = reg.Define(CommentModel); err != nil {
		t.Fatalf("failed to define comments: %v", err)
	}
	if blog.Posts, err = reg.Define(PostModel); err != nil {
		t.Fatalf("failed to define posts: %v", err)
	}

	var fixture fixtureData
	if err := json.Unmarshal(blogJSON, &fixture); err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}

	ctx := context.Background()
	for _, seed := range []struct {
		model *docstore.Model
		docs  []types.Document
	}{
		{blog.Users, fixture.Users},
		{blog.Comments, fixture.Comments},
		{blog.Posts, fixture.Posts},
	} {
		if _, err := seed.model.Create(ctx, seed.docs...); err != nil {
			t.Fatalf("failed to seed %s: %v", seed.model.Name(), err)
		}
	}
	return blog
}

// IDs returns the _id of every document, in order
func IDs(docs []types.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

// WriteModelsFile writes the blog model descriptors to dir/models.yaml and
// returns its path
func WriteModelsFile(t *testing.T, dir string) string {
	t.Helper()
	data, err := yaml.Marshal(docstore.ModelsFile{
		Models: []types.ModelConfig{UserModel, CommentModel, PostModel},
	})
	if err != nil {
		t.Fatalf("failed to marshal models file: %v", err)
	}
	path := filepath.Join(dir, "models.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write models file: %v", err)
	}
	return path
}
