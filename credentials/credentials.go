// Package credentials runs the Blogger OAuth2 authorization flow and keeps
// the resulting token set in the settings store, refreshing it lazily when a
// publish needs it.
package credentials

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

// BloggerScope grants read/write access to the user's Blogger blogs.
const BloggerScope = "https://www.googleapis.com/auth/blogger"

// refreshLeeway treats tokens this close to expiry as already expired.
const refreshLeeway = time.Minute

// ErrNotConnected is returned when no credential has been stored yet.
var ErrNotConnected = fmt.Errorf("%w: blogger account is not connected", apperr.ErrAuthorization)

// State is the connection state shown on the settings page.
type State string

const (
	StateUnauthorized State = "unauthorized"
	StateAuthorized   State = "authorized"
)

// Credential is the persisted token set. It is stored as JSON under
// store.KeyBloggerCredentials.
type Credential struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	TokenURI     string    `json:"token_uri"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Token converts the credential to an oauth2 token.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Expired reports whether the access token must be refreshed before use.
// A zero expiry means the platform did not report one.
func (c Credential) Expired(now time.Time) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.Expiry.IsZero() {
		return false
	}
	return !now.Add(refreshLeeway).Before(c.Expiry)
}

// Manager obtains, stores and refreshes Blogger credentials.
type Manager struct {
	settings    store.SettingsRepository
	redirectURL string
	endpoint    oauth2.Endpoint
	client      *http.Client
	now         func() time.Time
	logger      *zap.Logger

	mu sync.Mutex
}

// Option customises a Manager.
type Option func(*Manager)

// WithEndpoint overrides the OAuth2 endpoints (used in tests).
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(m *Manager) {
		m.endpoint = ep
	}
}

// WithHTTPClient sets the client used for token exchange and refresh.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) {
		m.client = c
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager returns a Manager that persists through settings and sends the
// user back to redirectURL after consent.
func NewManager(settings store.SettingsRepository, redirectURL string, opts ...Option) *Manager {
	m := &Manager{
		settings:    settings,
		redirectURL: redirectURL,
		endpoint:    google.Endpoint,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) withClient(ctx context.Context) context.Context {
	if m.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.client)
}

func (m *Manager) oauthConfig(ctx context.Context) (*oauth2.Config, error) {
	id := strings.TrimSpace(m.settings.Get(ctx, store.KeyBloggerClientID, ""))
	secret := strings.TrimSpace(m.settings.Get(ctx, store.KeyBloggerClientSecret, ""))
	if id == "" || secret == "" {
		return nil, fmt.Errorf("%w: blogger client id and client secret must be configured", apperr.ErrConfiguration)
	}
	return &oauth2.Config{
		ClientID:     id,
		ClientSecret: secret,
		Endpoint:     m.endpoint,
		RedirectURL:  m.redirectURL,
		Scopes:       []string{BloggerScope},
	}, nil
}

// AuthorizationURL starts a new authorization flow. It stores a fresh state
// token, replacing any pending one, and returns the consent URL.
func (m *Manager) AuthorizationURL(ctx context.Context) (string, error) {
	cfg, err := m.oauthConfig(ctx)
	if err != nil {
		return "", err
	}
	state := uuid.NewString()
	if err := m.settings.Set(ctx, store.KeyBloggerOAuthState, state); err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	), nil
}

// HandleCallback validates state against the pending flow and exchanges code
// for a token set. Nothing is sent to the token endpoint unless state matches.
func (m *Manager) HandleCallback(ctx context.Context, code, state string) error {
	pending, _, err := m.settings.Lookup(ctx, store.KeyBloggerOAuthState)
	if err != nil {
		return err
	}
	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
		return fmt.Errorf("%w: oauth state mismatch", apperr.ErrAuthorization)
	}
	cfg, err := m.oauthConfig(ctx)
	if err != nil {
		return err
	}

	tok, err := cfg.Exchange(m.withClient(ctx), code)
	if err != nil {
		return fmt.Errorf("%w: token exchange: %w", apperr.ErrAuthorization, err)
	}
	cred := Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		TokenURI:     cfg.Endpoint.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       grantedScopes(tok, cfg.Scopes),
		Expiry:       tok.Expiry,
	}
	if err := m.save(ctx, cred); err != nil {
		return err
	}
	if err := m.settings.Set(ctx, store.KeyBloggerOAuthState, ""); err != nil {
		return err
	}
	m.logger.Info("blogger account connected", zap.Strings("scopes", cred.Scopes))
	return nil
}

func grantedScopes(tok *oauth2.Token, requested []string) []string {
	if s, ok := tok.Extra("scope").(string); ok && s != "" {
		return strings.Fields(s)
	}
	return requested
}

// Credentials returns a usable credential, refreshing and persisting it first
// when the access token has expired. A failed refresh means the user has to
// authorize again.
func (m *Manager) Credentials(ctx context.Context) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.load(ctx)
	if err != nil {
		return Credential{}, err
	}
	if !cred.Expired(m.now()) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: access token expired and no refresh token is stored", apperr.ErrAuthentication)
	}

	m.logger.Debug("refreshing blogger access token", zap.Time("expired_at", cred.Expiry))
	cfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cred.TokenURI, AuthStyle: m.endpoint.AuthStyle},
		Scopes:       cred.Scopes,
	}
	// an empty access token forces exactly one refresh request
	tok, err := cfg.TokenSource(m.withClient(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		m.logger.Warn("blogger token refresh failed", zap.Error(err))
		return Credential{}, fmt.Errorf("%w: refresh access token: %w", apperr.ErrAuthentication, err)
	}
	cred.AccessToken = tok.AccessToken
	cred.Expiry = tok.Expiry
	if tok.TokenType != "" {
		cred.TokenType = tok.TokenType
	}
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if err := m.save(ctx, cred); err != nil {
		return Credential{}, err
	}
	m.logger.Info("blogger access token refreshed", zap.Time("expiry", cred.Expiry))
	return cred, nil
}

// TokenSource returns a static token source over a fresh credential, for
// API clients that should not refresh on their own.
func (m *Manager) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cred, err := m.Credentials(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.StaticTokenSource(cred.Token()), nil
}

// State reports whether a credential is stored. It does not contact the
// platform.
func (m *Manager) State(ctx context.Context) State {
	if _, err := m.load(ctx); err != nil {
		return StateUnauthorized
	}
	return StateAuthorized
}

// Disconnect forgets the stored credential.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings.Set(ctx, store.KeyBloggerCredentials, "")
}

func (m *Manager) load(ctx context.Context) (Credential, error) {
	raw, _, err := m.settings.Lookup(ctx, store.KeyBloggerCredentials)
	if err != nil {
		return Credential{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return Credential{}, ErrNotConnected
	}
	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return Credential{}, fmt.Errorf("%w: stored blogger credential is unreadable: %w", apperr.ErrAuthentication, err)
	}
	if cred.TokenURI == "" || cred.ClientID == "" {
		return Credential{}, fmt.Errorf("%w: stored blogger credential is incomplete", apperr.ErrAuthentication)
	}
	return cred, nil
}

func (m *Manager) save(ctx context.Context, cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	return m.settings.Set(ctx, store.KeyBloggerCredentials, string(data))
}
