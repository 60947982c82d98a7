package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/docstore/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// blogDir seeds a data directory with the blog fixture and its models file
func blogDir(t *testing.T) string {
	t.Helper()
	blog := testutil.LoadBlog(t)
	testutil.WriteModelsFile(t, blog.Dir)
	return blog.Dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cli := NewCLI()
	var out, errOut bytes.Buffer
	cli.rootCmd.SetOut(&out)
	cli.rootCmd.SetErr(&errOut)
	cli.rootCmd.SetArgs(args)
	err := cli.rootCmd.Execute()
	return out.String(), err
}

func decodeDocs(t *testing.T, out string) []map[string]any {
	t.Helper()
	var docs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &docs), "output: %s", out)
	return docs
}

func ids(docs []map[string]any) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d["_id"]
	}
	return out
}

func TestFindCommand(t *testing.T) {
	dir := blogDir(t)

	t.Run("filter sort select", func(t *testing.T) {
		out, err := execute(t, "--data-dir", dir, "find", "posts",
			"--filter", `{"status":"published"}`, "--sort", "-views", "--select", "title")
		require.NoError(t, err)
		docs := decodeDocs(t, out)
		assert.Equal(t, []any{"p1", "p3"}, ids(docs))
		assert.Equal(t, map[string]any{"_id": "p3", "title": "Aggregation pipelines"}, docs[1])
	})

	t.Run("json sort skip limit", func(t *testing.T) {
		out, err := execute(t, "--data-dir", dir, "find", "users",
			"--sort", `{"age":-1}`, "--skip", "1", "--limit", "1")
		require.NoError(t, err)
		assert.Equal(t, []any{"u1"}, ids(decodeDocs(t, out)))
	})

	t.Run("populate", func(t *testing.T) {
		out, err := execute(t, "--data-dir", dir, "find", "comments",
			"--filter", `{"_id":"c1"}`, "--populate", "author")
		require.NoError(t, err)
		docs := decodeDocs(t, out)
		require.Len(t, docs, 1)
		author, ok := docs[0]["author"].(map[string]any)
		require.True(t, ok, "author not populated: %v", docs[0])
		assert.Equal(t, "Bo Brown", author["name"])
	})

	t.Run("invalid filter", func(t *testing.T) {
		_, err := execute(t, "--data-dir", dir, "find", "posts", "--filter", `{"status":`)
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "--data-dir", dir, "--format", "xml", "find", "posts")
		assert.Error(t, err)
	})
}

func TestCountCommand(t *testing.T) {
	dir := blogDir(t)
	out, err := execute(t, "--data-dir", dir, "count", "posts", "--filter", `{"status":"published"}`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "--data-dir", dir, "count", "nothing-here")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestAggregateCommand(t *testing.T) {
	dir := blogDir(t)
	out, err := execute(t, "--data-dir", dir, "aggregate", "posts", "--pipeline",
		`[{"$group":{"_id":"$author","views":{"$sum":"$views"}}},{"$sort":{"_id":1}}]`)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"_id": "u1", "views": 200.0},
		{"_id": "u2", "views": 15.0},
	}, decodeDocs(t, out))

	out, err = execute(t, "--data-dir", dir, "aggregate", "comments", "--pipeline",
		`[{"$match":{"_id":"c1"}},
		  {"$lookup":{"from":"users","localField":"author","foreignField":"_id","as":"who"}},
		  {"$unwind":{"path":"$who"}},
		  {"$project":{"name":"$who.name"}}]`)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"_id": "c1", "name": "Bo Brown"}}, decodeDocs(t, out))

	pipelineFile := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(pipelineFile, []byte(`[{"$count":"n"}]`), 0o644))
	out, err = execute(t, "--data-dir", dir, "aggregate", "posts", "--pipeline-file", pipelineFile)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"n": 3.0}}, decodeDocs(t, out))

	_, err = execute(t, "--data-dir", dir, "aggregate", "posts", "--pipeline", `{"$match":{}}`)
	assert.Error(t, err, "a pipeline must be an array")
}

func TestUpdateAndDeleteCommands(t *testing.T) {
	dir := blogDir(t)

	out, err := execute(t, "--data-dir", dir, "update", "posts",
		"--filter", `{"_id":"p2"}`, "--update", `{"$set":{"status":"published"}}`)
	require.NoError(t, err)
	docs := decodeDocs(t, out)
	require.Len(t, docs, 1)
	assert.Equal(t, "published", docs[0]["status"])

	out, err = execute(t, "--data-dir", dir, "update", "counters",
		"--filter", `{"_id":"hits"}`, "--update", `{"$inc":{"n":1}}`, "--upsert")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"_id": "hits", "n": 1.0}}, decodeDocs(t, out))

	out, err = execute(t, "--data-dir", dir, "delete", "posts", "--filter", `{"author":"u1"}`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "--data-dir", dir, "count", "posts")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, "--data-dir", dir, "delete", "posts")
	assert.Error(t, err, "delete without --filter")
}

func TestSearchCommand(t *testing.T) {
	dir := blogDir(t)
	out, err := execute(t, "--data-dir", dir, "search", "posts", "aggregation", "pipelines", "--scores")
	require.NoError(t, err)
	docs := decodeDocs(t, out)
	require.NotEmpty(t, docs)
	assert.Equal(t, "p3", docs[0]["_id"])
	assert.Contains(t, docs[0], "_score")

	out, err = execute(t, "--data-dir", dir, "search", "users", "a", "--field", "name", "--max", "1")
	require.NoError(t, err)
	assert.Len(t, decodeDocs(t, out), 1)
}

func TestExportImportCommands(t *testing.T) {
	dir := blogDir(t)
	exported := filepath.Join(t.TempDir(), "users.yaml")

	_, err := execute(t, "--data-dir", dir, "export", "users", "--out", exported)
	require.NoError(t, err)
	data, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Amy Adams")

	out, err := execute(t, "--data-dir", dir, "import", "people", exported)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, "--data-dir", dir, "find", "people", "--sort", "_id", "--select", "name")
	require.NoError(t, err)
	assert.Equal(t, []any{"u1", "u2", "u3"}, ids(decodeDocs(t, out)))

	_, err = execute(t, "--data-dir", dir, "import", "people", exported)
	assert.Error(t, err, "importing taken ids")

	out, err = execute(t, "--data-dir", dir, "--format", "table", "export", "users")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "_id"), "table output: %s", out)

	_, err = execute(t, "--data-dir", dir, "import", "people", exported, "--input-format", "table")
	assert.Error(t, err, "table is output only")
}

func TestModelsCommands(t *testing.T) {
	dir := blogDir(t)

	out, err := execute(t, "--data-dir", dir, "models", "list")
	require.NoError(t, err)
	for _, name := range []string{"users", "comments", "posts"} {
		assert.Contains(t, out, name)
	}

	out, err = execute(t, "models", "schema")
	require.NoError(t, err)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, schema["properties"], "models")
}

func TestConfigSources(t *testing.T) {
	dir := blogDir(t)

	t.Run("config file", func(t *testing.T) {
		cfg := filepath.Join(t.TempDir(), "docstore.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("data-dir: "+dir+"\nformat: yaml\n"), 0o644))
		out, err := execute(t, "--config", cfg, "find", "users", "--filter", `{"_id":"u2"}`, "--select", "name")
		require.NoError(t, err)
		assert.Contains(t, out, "name: Bo Brown")
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("DOCSTORE_DATA_DIR", dir)
		out, err := execute(t, "count", "comments")
		require.NoError(t, err)
		assert.Equal(t, "3\n", out)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "count", "users")
		assert.Error(t, err)
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := execute(t, "--data-dir", dir, "--log-level", "loud", "count", "users")
		assert.Error(t, err)
	})
}

func TestParseJSONArg(t *testing.T) {
	v, err := parseJSONArg(`{"b": 1, "a": [true, null, {"z": "x", "y": 2}]}`)
	require.NoError(t, err)
	assert.Equal(t, primitive.D{
		{Key: "b", Value: 1.0},
		{Key: "a", Value: primitive.A{true, nil, primitive.D{{Key: "z", Value: "x"}, {Key: "y", Value: 2.0}}}},
	}, v)

	for _, bad := range []string{``, `{"a":}`, `{"a":1} {}`, `[1,`} {
		_, err := parseJSONArg(bad)
		assert.Error(t, err, "input %q", bad)
	}

	spec, err := specArg("name -age")
	require.NoError(t, err)
	assert.Equal(t, "name -age", spec)
}
