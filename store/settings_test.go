package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsGetDefault(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	assert.Equal(t, "false", s.Settings().Get(ctx, KeyConfigured, "false"))

	_, ok, err := s.Settings().Lookup(ctx, KeyConfigured)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsSetOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	repo := s.Settings()

	require.NoError(t, repo.Set(ctx, KeyBlogType, "blogger"))
	require.NoError(t, repo.Set(ctx, KeyBlogType, "wordpress"))
	assert.Equal(t, "wordpress", repo.Get(ctx, KeyBlogType, ""))

	// empty values are stored, not treated as missing
	require.NoError(t, repo.Set(ctx, KeyWordPressURL, ""))
	v, ok, err := repo.Lookup(ctx, KeyWordPressURL)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, v)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyBlogType: "wordpress", KeyWordPressURL: ""}, all)
}

func TestSettingsGetNeverFails(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Close())
	assert.Equal(t, "fallback", s.Settings().Get(context.Background(), KeyBlogType, "fallback"))
}

func TestSaveSettingsIsAtomic(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSettings(ctx, map[string]string{
		KeyBlogType:     "wordpress",
		KeyWordPressURL: "https://example.com",
		KeyConfigured:   "true",
	}))
	all, err := s.Settings().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "true", all[KeyConfigured])
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{KeyWordPressPassword, true},
		{KeyBloggerClientSecret, true},
		{KeyBloggerCredentials, true},
		{KeyBloggerOAuthState, true},
		{KeyBloggerClientID, false},
		{KeyWordPressURL, false},
		{KeyBlogType, false},
		{"smtp_password", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSensitiveKey(tt.key))
		})
	}
}
