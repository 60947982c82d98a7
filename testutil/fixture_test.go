package testutil

import (
	"context"
	"testing"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/google/go-cmp/cmp"
)

func TestLoadBlog(t *testing.T) {
	blog := LoadBlog(t)
	ctx := context.Background()

	for _, tc := range []struct {
		name string
		want int
	}{
		{"users", 3},
		{"comments", 3},
		{"posts", 3},
	} {
		m, ok := blog.Registry.Model(tc.name)
		if !ok {
			t.Fatalf("model %s not defined", tc.name)
		}
		n, err := m.CountDocuments(ctx, nil)
		if err != nil {
			t.Fatalf("CountDocuments(%s): %v", tc.name, err)
		}
		if n != tc.want {
			t.Errorf("%s has %d documents, want %d", tc.name, n, tc.want)
		}
	}

	users, err := blog.Users.Find(nil).ExecLean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"u1", "u2", "u3"}, IDs(users)); diff != "" {
		t.Errorf("user order (-want +got):\n%s", diff)
	}
	if users[1]["role"] != "member" {
		t.Errorf("defaults not applied: %v", users[1])
	}
	if users[0]["createdAt"] != "2024-03-01T12:00:00.000Z" {
		t.Errorf("createdAt = %v", users[0]["createdAt"])
	}
}

func TestWriteModelsFile(t *testing.T) {
	path := WriteModelsFile(t, t.TempDir())
	reg := docstore.NewRegistry(t.TempDir())
	models, err := reg.DefineFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"users", "comments", "posts"}, reg.Models()); diff != "" {
		t.Errorf("models (-want +got):\n%s", diff)
	}
	if rel, ok := models[2].Config().Relation("comments"); !ok || !rel.Array {
		t.Errorf("posts.comments relation = %+v, %v", rel, ok)
	}
}
