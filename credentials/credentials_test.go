package credentials

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

const redirect = "http://localhost:5000/auth/blogger/callback"

type tokenServer struct {
	*httptest.Server
	calls    atomic.Int32
	lastForm url.Values
	status   int
	body     map[string]any
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{
		status: http.StatusOK,
		body: map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         BloggerScope,
		},
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		assert.NoError(t, r.ParseForm())
		ts.lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		if ts.status != http.StatusOK {
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
			return
		}
		json.NewEncoder(w).Encode(ts.body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   ts.URL + "/auth",
		TokenURL:  ts.URL + "/token",
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

func setup(t *testing.T, ts *tokenServer, configured bool) (*Manager, store.SettingsRepository) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "blog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	settings := s.Settings()
	if configured {
		require.NoError(t, settings.Set(ctx, store.KeyBloggerClientID, "client-id"))
		require.NoError(t, settings.Set(ctx, store.KeyBloggerClientSecret, "client-secret"))
	}
	m := NewManager(settings, redirect,
		WithEndpoint(ts.endpoint()),
		WithHTTPClient(ts.Client()),
		WithLogger(zaptest.NewLogger(t)),
	)
	return m, settings
}

func storeCredential(t *testing.T, settings store.SettingsRepository, c Credential) {
	t.Helper()
	data, err := json.Marshal(c)
	require.NoError(t, err)
	require.NoError(t, settings.Set(context.Background(), store.KeyBloggerCredentials, string(data)))
}

func TestAuthorizationURLRequiresClientConfig(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, false)
	ctx := context.Background()

	_, err := m.AuthorizationURL(ctx)
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Empty(t, settings.Get(ctx, store.KeyBloggerOAuthState, ""))
}

func TestAuthorizationURL(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	raw, err := m.AuthorizationURL(ctx)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/auth", u.Path)
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, redirect, q.Get("redirect_uri"))
	assert.Equal(t, BloggerScope, q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.NotEmpty(t, q.Get("state"))
	assert.Equal(t, q.Get("state"), settings.Get(ctx, store.KeyBloggerOAuthState, ""))

	// a new flow replaces the pending state
	raw2, err := m.AuthorizationURL(ctx)
	require.NoError(t, err)
	u2, err := url.Parse(raw2)
	require.NoError(t, err)
	assert.NotEqual(t, q.Get("state"), u2.Query().Get("state"))
	assert.Equal(t, u2.Query().Get("state"), settings.Get(ctx, store.KeyBloggerOAuthState, ""))
	assert.Zero(t, ts.calls.Load())
}

func TestHandleCallbackRejectsWrongState(t *testing.T) {
	ts := newTokenServer(t)
	m, _ := setup(t, ts, true)
	ctx := context.Background()

	// no flow pending
	err := m.HandleCallback(ctx, "valid-code", "")
	require.ErrorIs(t, err, apperr.ErrAuthorization)

	_, err = m.AuthorizationURL(ctx)
	require.NoError(t, err)

	err = m.HandleCallback(ctx, "valid-code", "wrong-state")
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Zero(t, ts.calls.Load())
	assert.Equal(t, StateUnauthorized, m.State(ctx))
}

func TestHandleCallbackStoresCredential(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	raw, err := m.AuthorizationURL(ctx)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	require.NoError(t, m.HandleCallback(ctx, "the-code", u.Query().Get("state")))
	assert.EqualValues(t, 1, ts.calls.Load())
	assert.Equal(t, "the-code", ts.lastForm.Get("code"))
	assert.Equal(t, "authorization_code", ts.lastForm.Get("grant_type"))

	assert.Empty(t, settings.Get(ctx, store.KeyBloggerOAuthState, "x"))
	assert.Equal(t, StateAuthorized, m.State(ctx))

	var cred Credential
	require.NoError(t, json.Unmarshal([]byte(settings.Get(ctx, store.KeyBloggerCredentials, "")), &cred))
	assert.Equal(t, "access-1", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, ts.URL+"/token", cred.TokenURI)
	assert.Equal(t, "client-id", cred.ClientID)
	assert.Equal(t, "client-secret", cred.ClientSecret)
	assert.Equal(t, []string{BloggerScope}, cred.Scopes)
	assert.False(t, cred.Expiry.IsZero())

	// the state is single use
	err = m.HandleCallback(ctx, "the-code", u.Query().Get("state"))
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.EqualValues(t, 1, ts.calls.Load())
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	ts := newTokenServer(t)
	ts.status = http.StatusBadRequest
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	require.NoError(t, settings.Set(ctx, store.KeyBloggerOAuthState, "s"))
	err := m.HandleCallback(ctx, "bad-code", "s")
	require.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Equal(t, StateUnauthorized, m.State(ctx))
}

func TestCredentialsNotConnected(t *testing.T) {
	ts := newTokenServer(t)
	m, _ := setup(t, ts, true)

	_, err := m.Credentials(context.Background())
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCredentialsUnreadableBlob(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	require.NoError(t, settings.Set(ctx, store.KeyBloggerCredentials, "{not json"))
	_, err := m.Credentials(ctx)
	require.ErrorIs(t, err, apperr.ErrAuthentication)
	assert.Equal(t, StateUnauthorized, m.State(ctx))
}

func TestCredentialsValidTokenIsNotRefreshed(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, true)
	storeCredential(t, settings, Credential{
		AccessToken:  "still-good",
		RefreshToken: "r",
		TokenURI:     ts.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Expiry:       time.Now().Add(time.Hour),
	})

	cred, err := m.Credentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "still-good", cred.AccessToken)
	assert.Zero(t, ts.calls.Load())
}

func TestCredentialsRefreshesExpiredTokenOnce(t *testing.T) {
	ts := newTokenServer(t)
	delete(ts.body, "refresh_token")
	ts.body["access_token"] = "access-2"
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	storeCredential(t, settings, Credential{
		AccessToken:  "stale",
		RefreshToken: "keep-me",
		TokenURI:     ts.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       []string{BloggerScope},
		Expiry:       time.Now().Add(-time.Hour),
	})

	cred, err := m.Credentials(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ts.calls.Load())
	assert.Equal(t, "refresh_token", ts.lastForm.Get("grant_type"))
	assert.Equal(t, "keep-me", ts.lastForm.Get("refresh_token"))
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "keep-me", cred.RefreshToken)
	assert.True(t, cred.Expiry.After(time.Now()))

	var stored Credential
	require.NoError(t, json.Unmarshal([]byte(settings.Get(ctx, store.KeyBloggerCredentials, "")), &stored))
	assert.Equal(t, "access-2", stored.AccessToken)
	assert.Equal(t, "keep-me", stored.RefreshToken)

	again, err := m.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", again.AccessToken)
	assert.EqualValues(t, 1, ts.calls.Load())

	src, err := m.TokenSource(ctx)
	require.NoError(t, err)
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "access-2", tok.AccessToken)
	assert.EqualValues(t, 1, ts.calls.Load())
}

func TestCredentialsRefreshFailure(t *testing.T) {
	ts := newTokenServer(t)
	ts.status = http.StatusBadRequest
	m, settings := setup(t, ts, true)
	ctx := context.Background()

	storeCredential(t, settings, Credential{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		TokenURI:     ts.URL + "/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Expiry:       time.Now().Add(-time.Minute),
	})
	_, err := m.Credentials(ctx)
	require.ErrorIs(t, err, apperr.ErrAuthentication)
	assert.EqualValues(t, 1, ts.calls.Load())

	var stored Credential
	require.NoError(t, json.Unmarshal([]byte(settings.Get(ctx, store.KeyBloggerCredentials, "")), &stored))
	assert.Equal(t, "stale", stored.AccessToken)
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"no access token", Credential{}, true},
		{"no expiry", Credential{AccessToken: "a"}, false},
		{"past", Credential{AccessToken: "a", Expiry: now.Add(-time.Second)}, true},
		{"within leeway", Credential{AccessToken: "a", Expiry: now.Add(30 * time.Second)}, true},
		{"future", Credential{AccessToken: "a", Expiry: now.Add(time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Expired(now))
		})
	}
}

func TestDisconnect(t *testing.T) {
	ts := newTokenServer(t)
	m, settings := setup(t, ts, true)
	ctx := context.Background()
	storeCredential(t, settings, Credential{AccessToken: "a", TokenURI: ts.URL, ClientID: "c"})
	assert.Equal(t, StateAuthorized, m.State(ctx))

	require.NoError(t, m.Disconnect(ctx))
	assert.Equal(t, StateUnauthorized, m.State(ctx))
}
