package docstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/arthur-debert/docstore/docstore"
	"github.com/arthur-debert/docstore/testutil"
	"github.com/arthur-debert/docstore/types"
	"github.com/google/go-cmp/cmp"
)

func TestPopulate(t *testing.T) {
	blog := testutil.LoadBlog(t)
	ctx := context.Background()

	t.Run("scalar with select and nested array", func(t *testing.T) {
		got, err := blog.Posts.FindByID("p1").
			Select("title author comments").
			Populate(
				types.PopulateSpec{Path: "author", Select: "name"},
				types.PopulateSpec{
					Path:     "comments",
					Select:   "text author",
					Populate: []types.PopulateSpec{{Path: "author", Select: "name -_id"}},
				},
			).OneLean(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := types.Document{
			"_id":    "p1",
			"title":  "Embedded stores in Go",
			"author": map[string]any{"_id": "u1", "name": "Amy Adams"},
			// the dangling "missing" reference is dropped
			"comments": []any{
				map[string]any{"_id": "c1", "text": "Great post", "author": map[string]any{"name": "Bo Brown"}},
				map[string]any{"_id": "c2", "text": "I disagree", "author": map[string]any{"name": "Cy Chen"}},
			},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("populate mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("array skip and limit", func(t *testing.T) {
		got, err := blog.Posts.FindByID("p1").
			Populate(types.PopulateSpec{Path: "comments", Select: "text", Skip: 1, Limit: 1}).
			OneLean(ctx)
		if err != nil {
			t.Fatal(err)
		}
		want := []any{map[string]any{"_id": "c2", "text": "I disagree"}}
		if diff := cmp.Diff(want, got["comments"]); diff != "" {
			t.Errorf("comments (-want +got):\n%s", diff)
		}
	})

	t.Run("batched across results", func(t *testing.T) {
		got, err := blog.Posts.Find(nil).Sort("_id").PopulatePath("author").ExecLean(ctx)
		if err != nil {
			t.Fatal(err)
		}
		var names []any
		for _, d := range got {
			names = append(names, d["author"].(map[string]any)["name"])
		}
		if diff := cmp.Diff([]any{"Amy Adams", "Bo Brown", "Amy Adams"}, names); diff != "" {
			t.Errorf("authors (-want +got):\n%s", diff)
		}
	})

	t.Run("unresolved scalar becomes null", func(t *testing.T) {
		if _, err := blog.Comments.FindByIDAndUpdate("c1",
			map[string]any{"$set": map[string]any{"author": "ghost"}}, types.UpdateOptions{}).OneLean(ctx); err != nil {
			t.Fatal(err)
		}
		got, err := blog.Comments.FindByID("c1").PopulatePath("author").OneLean(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := got["author"]; !ok || v != nil {
			t.Errorf("author = %v, want null", got["author"])
		}
	})

	t.Run("undeclared paths are ignored", func(t *testing.T) {
		got, err := blog.Posts.FindByID("p2").PopulatePath("tags").OneLean(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]any{"design"}, got["tags"]); diff != "" {
			t.Errorf("tags (-want +got):\n%s", diff)
		}
	})
}

func TestRecordSaveStoresReferences(t *testing.T) {
	blog := testutil.LoadBlog(t)
	ctx := context.Background()

	rec, err := blog.Posts.FindByID("p3").PopulatePath("author comments").One(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Get("author.name") != "Amy Adams" {
		t.Fatalf("author not populated: %v", rec.Get("author"))
	}
	rec.Set("title", "Pipelines, revisited")
	if err := rec.Save(ctx); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(blog.Posts.Path())
	if err != nil {
		t.Fatal(err)
	}
	var stored []types.Document
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("stored file is not valid JSON: %v", err)
	}
	var p3 types.Document
	for _, d := range stored {
		if d.ID() == "p3" {
			p3 = d
		}
	}
	if p3["title"] != "Pipelines, revisited" || p3["author"] != "u1" {
		t.Errorf("stored p3 = %v", p3)
	}
	if diff := cmp.Diff([]any{"c3"}, p3["comments"]); diff != "" {
		t.Errorf("stored comments (-want +got):\n%s", diff)
	}
}

func TestRecordLifecycle(t *testing.T) {
	blog := testutil.LoadBlog(t)
	ctx := context.Background()

	rec := blog.Users.New(types.Document{"name": "Eve", "email": "eve@example.com"})
	if !rec.IsNew() || rec.ID() == "" {
		t.Fatalf("new record: isNew=%v id=%q", rec.IsNew(), rec.ID())
	}
	if rec.Get("role") != "member" {
		t.Errorf("defaults not applied: %v", rec.Doc())
	}
	if err := rec.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if rec.IsNew() || rec.Get("createdAt") != fixtureTime {
		t.Errorf("after save: isNew=%v doc=%v", rec.IsNew(), rec.Doc())
	}

	rec.Set("age", 22)
	if err := rec.Save(ctx); err != nil {
		t.Fatal(err)
	}
	stored, err := blog.Users.FindByID(rec.ID()).OneLean(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored["age"] != 22.0 {
		t.Errorf("stored age = %v", stored["age"])
	}
	if n, _ := blog.Users.CountDocuments(ctx, nil); n != 4 {
		t.Errorf("users = %d, want 4", n)
	}

	obj := rec.ToObject()
	obj["name"] = "changed"
	if rec.Get("name") != "Eve" {
		t.Error("ToObject shares state with the record")
	}

	if err := rec.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if err := rec.Delete(ctx); err != nil {
		t.Errorf("second delete: %v", err)
	}
	if n, _ := blog.Users.CountDocuments(ctx, nil); n != 3 {
		t.Errorf("users = %d, want 3", n)
	}
}

func TestSaveDuplicateID(t *testing.T) {
	blog := testutil.LoadBlog(t)
	rec := blog.Users.New(types.Document{"_id": "u1", "name": "Clone"})
	if err := rec.Save(context.Background()); err == nil {
		t.Error("expected duplicate id error")
	}
	if !rec.IsNew() {
		t.Error("failed save cleared IsNew")
	}
}

func TestSaveSelectedRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps fields outside the selection", func(t *testing.T) {
		blog := testutil.LoadBlog(t)
		rec, err := blog.Users.FindByID("u1").Select("name").One(ctx)
		if err != nil {
			t.Fatal(err)
		}
		rec.Set("name", "Amy A.")
		if err := rec.Save(ctx); err != nil {
			t.Fatal(err)
		}
		stored, _ := blog.Users.FindByID("u1").Select("name email age role").OneLean(ctx)
		want := types.Document{"_id": "u1", "name": "Amy A.", "email": "amy@example.com", "age": 34.0, "role": "admin"}
		if diff := cmp.Diff(want, stored); diff != "" {
			t.Errorf("stored u1 (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps excluded fields", func(t *testing.T) {
		blog := testutil.LoadBlog(t)
		rec, err := blog.Users.FindByID("u3").Select("-password").One(ctx)
		if err != nil {
			t.Fatal(err)
		}
		rec.Set("age", 42)
		if err := rec.Save(ctx); err != nil {
			t.Fatal(err)
		}
		stored, _ := blog.Users.FindByID("u3").OneLean(ctx)
		if stored["password"] != "hunter2" || stored["age"] != 42.0 {
			t.Errorf("stored u3 = %v", stored)
		}
	})

	t.Run("selected without id", func(t *testing.T) {
		blog := testutil.LoadBlog(t)
		rec, err := blog.Users.FindByID("u2").Select("name -_id").One(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := rec.Save(ctx); err == nil {
			t.Error("expected error saving a record without _id")
		}
		if n, _ := blog.Users.CountDocuments(ctx, nil); n != 3 {
			t.Errorf("users = %d, want 3", n)
		}
	})

	t.Run("stored document deleted", func(t *testing.T) {
		blog := testutil.LoadBlog(t)
		rec, err := blog.Users.FindByID("u2").Select("name").One(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := blog.Users.FindByIDAndDelete("u2").OneLean(ctx); err != nil {
			t.Fatal(err)
		}
		if err := rec.Save(ctx); !errors.Is(err, docstore.ErrRecordGone) {
			t.Errorf("err = %v, want ErrRecordGone", err)
		}
		if n, _ := blog.Users.CountDocuments(ctx, nil); n != 2 {
			t.Errorf("users = %d, want 2", n)
		}
	})
}

func TestNewAssignsSubDocumentIDs(t *testing.T) {
	blog := testutil.LoadBlog(t)
	rec := blog.Posts.New(types.Document{
		"title":     "Fresh",
		"revisions": []any{map[string]any{"note": "a"}, map[string]any{"_id": "keep", "note": "b"}},
	})
	revs := rec.Get("revisions").([]any)
	if revs[0].(map[string]any)["_id"] == nil {
		t.Error("first revision has no _id")
	}
	if revs[1].(map[string]any)["_id"] != "keep" {
		t.Error("existing sub-document _id was replaced")
	}
	if rec.Get("status") != "draft" {
		t.Errorf("status default = %v", rec.Get("status"))
	}
}
