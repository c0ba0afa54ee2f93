package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/blogpublisher/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useTempDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blog.db")
	t.Setenv("BLOGPUB_DATABASE_PATH", path)
	t.Setenv("BLOGPUB_ENVIRONMENT", "production")
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "blogpublisher ")
}

func TestSeedAndInfo(t *testing.T) {
	dbPath := useTempDatabase(t)

	out, err := run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 10 tags and 5 categories")

	out, err = run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 0 tags and 0 categories")

	out, err = run(t, "info", "--json")
	require.NoError(t, err)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, dbPath, info["database_path"])
	assert.EqualValues(t, 10, info["total_tags"])
	assert.EqualValues(t, 5, info["total_categories"])
	assert.EqualValues(t, 0, info["total_posts"])
}

func TestBackupAndRestore(t *testing.T) {
	useTempDatabase(t)
	_, err := run(t, "seed")
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "backup.json")
	out, err := run(t, "backup", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Backup created: "+file)
	_, err = os.Stat(file)
	require.NoError(t, err)

	useTempDatabase(t)
	out, err = run(t, "restore", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 0 posts, 10 tags, 5 categories")

	_, err = run(t, "restore", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	out, err := run(t, "init", path, "--port", "8080", "--database", filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote configuration to "+path)

	out, err = run(t, "--config", path, "info")
	require.NoError(t, err, out)

	_, err = run(t, "init", path)
	require.Error(t, err)
}

func TestPostsCommand(t *testing.T) {
	dbPath := useTempDatabase(t)

	out, err := run(t, "posts")
	require.NoError(t, err)
	assert.Contains(t, out, "No posts.")

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = s.SavePost(context.Background(), store.PostInput{Title: "First draft", Content: "body", BlogTarget: "wordpress"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	out, err = run(t, "posts")
	require.NoError(t, err)
	assert.Contains(t, out, "First draft")
	assert.Contains(t, out, "draft")
	assert.Contains(t, out, "wordpress")

	out, err = run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "Posts")
	assert.Contains(t, out, dbPath)
}
