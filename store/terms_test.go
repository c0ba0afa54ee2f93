package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavePostIncrementsUsage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.SavePost(ctx, PostInput{Title: "T", Content: "C", Tags: "a, b ,b", Categories: " Tech "})
	require.NoError(t, err)

	tags, err := s.Tags().List(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "b", tags[0].Name)
	assert.Equal(t, 2, tags[0].UsageCount)
	assert.Equal(t, "a", tags[1].Name)
	assert.Equal(t, 1, tags[1].UsageCount)

	cat, err := s.Categories().GetByName(ctx, "Tech")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.UsageCount)

	// saving again counts again
	_, err = s.SavePost(ctx, PostInput{Title: "T2", Content: "C", Tags: "a"})
	require.NoError(t, err)
	a, err := s.Tags().GetByName(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, a.UsageCount)
}

func TestTermAdd(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tag, created, err := s.Tags().Add(ctx, " golang ", "The Go language")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "golang", tag.Name)
	assert.Equal(t, "The Go language", tag.Description)
	assert.Zero(t, tag.UsageCount)
	assert.True(t, testNow.Equal(tag.CreatedDate))

	again, created, err := s.Tags().Add(ctx, "golang", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tag.ID, again.ID)
	assert.Equal(t, "The Go language", again.Description)

	// tags and categories are separate namespaces
	_, created, err = s.Categories().Add(ctx, "golang", "")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestTermAddValidation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, _, err := s.Categories().Add(ctx, "   ", "")
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Errors, "name")
}

func TestTermDelete(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	tag, _, err := s.Tags().Add(ctx, "go", "")
	require.NoError(t, err)
	require.NoError(t, s.Tags().Delete(ctx, tag.ID))
	_, err = s.Tags().Get(ctx, tag.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Tags().Delete(ctx, tag.ID), ErrNotFound)
}

func TestTermMerge(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	created, err := s.Categories().Merge(ctx, Term{Name: "Tech", Description: "d", UsageCount: 7})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Categories().Merge(ctx, Term{Name: "Tech", UsageCount: 1})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Categories().GetByName(ctx, "Tech")
	require.NoError(t, err)
	assert.Equal(t, 7, got.UsageCount)
}

func TestSeedDefaults(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, _, err := s.Tags().Add(ctx, "python", "mine")
	require.NoError(t, err)

	tags, cats, err := s.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(defaultTags)-1, tags)
	assert.Equal(t, len(defaultCategories), cats)

	py, err := s.Tags().GetByName(ctx, "python")
	require.NoError(t, err)
	assert.Equal(t, "mine", py.Description)

	tags, cats, err = s.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, tags)
	assert.Zero(t, cats)
}
