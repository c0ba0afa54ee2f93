package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eringen/blogpublisher/apperr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "test_blog.db")
	s, err := Open(path, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDirectoryAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "blog.db")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Close())

	// reopening an already migrated database is a no-op
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestWithTxRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(r Repos) error {
		require.NoError(t, r.Settings.Set(ctx, "blog_type", "wordpress"))
		_, _, err := r.Tags.Add(ctx, "go", "")
		require.NoError(t, err)
		return ErrNotFound
	})
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "none", s.Settings().Get(ctx, "blog_type", "none"))
	n, err := s.Tags().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPersistenceErrorsAreClassified(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Posts().List(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.Equal(t, "persistence", apperr.Kind(err))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"go", []string{"go"}},
		{"a, b ,b", []string{"a", "b", "b"}},
		{" Python ,  Web Dev ", []string{"Python", "Web Dev"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.in))
		})
	}
	assert.Equal(t, "a, b", JoinList([]string{"a", "b"}))
}
