package publisher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eringen/blogpublisher/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func setSettings(t *testing.T, s *store.Store, kv map[string]string) {
	t.Helper()
	require.NoError(t, s.SaveSettings(context.Background(), kv))
}

func TestRegistry(t *testing.T) {
	s := setupTestStore(t)
	wp := NewBasicAuthBlogAdapter(s.Settings(), nil, nil)
	r := NewRegistry(wp)

	a, err := r.Lookup(PlatformWordPress)
	require.NoError(t, err)
	require.Same(t, wp, a)

	_, err = r.Lookup("medium")
	require.Error(t, err)
	_, err = r.Lookup("")
	require.Error(t, err)

	r.Register(NewTokenBlogAdapter(s.Settings(), nil, nil))
	require.Equal(t, []string{PlatformBlogger, PlatformWordPress}, r.Names())
}
