package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Known setting keys.
const (
	KeyConfigured = "configured"
	KeyBlogType   = "blog_type"

	KeyBloggerBlogID       = "blogger_blog_id"
	KeyBloggerClientID     = "blogger_client_id"
	KeyBloggerClientSecret = "blogger_client_secret"
	KeyBloggerOAuthState   = "blogger_oauth_state"
	KeyBloggerCredentials  = "blogger_credentials"

	KeyWordPressURL      = "wordpress_url"
	KeyWordPressUsername = "wordpress_username"
	KeyWordPressPassword = "wordpress_password"
)

// IsSensitiveKey reports whether a setting holds a secret or credential and
// must stay out of backups and rendered pages.
func IsSensitiveKey(key string) bool {
	switch key {
	case KeyBloggerCredentials, KeyBloggerOAuthState:
		return true
	}
	return strings.HasSuffix(key, "_password") || strings.HasSuffix(key, "_secret")
}

// SettingsRepository is a key/value store with overwrite semantics.
type SettingsRepository interface {
	// Get returns the stored value, or def when the key is missing or the
	// storage cannot be read. It never fails.
	Get(ctx context.Context, key, def string) string
	// Lookup distinguishes a missing key from a storage failure.
	Lookup(ctx context.Context, key string) (string, bool, error)
	// Set creates or overwrites key.
	Set(ctx context.Context, key, value string) error
	// All returns every stored setting.
	All(ctx context.Context) (map[string]string, error)
}

// SettingsStore implements SettingsRepository on the settings table.
type SettingsStore struct {
	q dbtx
}

func (s *SettingsStore) Get(ctx context.Context, key, def string) string {
	v, ok, err := s.Lookup(ctx, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func (s *SettingsStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, persistence("read setting "+key, err)
	}
	return v, true, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return persistence("write setting "+key, err)
	}
	return nil
}

func (s *SettingsStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, persistence("list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, persistence("scan setting", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list settings", err)
	}
	return out, nil
}
