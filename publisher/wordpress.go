package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

const (
	wordPressAPIPath = "/wp-json/wp/v2"
	publishTimeout   = 30 * time.Second
	queryTimeout     = 10 * time.Second
	maxBodyBytes     = 1 << 20
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// BasicAuthBlogAdapter publishes to a WordPress site through its REST API
// using basic auth (typically an application password).
type BasicAuthBlogAdapter struct {
	settings store.SettingsRepository
	client   Doer
	logger   *zap.Logger
}

// NewBasicAuthBlogAdapter returns a WordPress adapter. A nil client uses a
// plain *http.Client; deadlines come from the request context.
func NewBasicAuthBlogAdapter(settings store.SettingsRepository, client Doer, logger *zap.Logger) *BasicAuthBlogAdapter {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BasicAuthBlogAdapter{settings: settings, client: client, logger: logger}
}

func (a *BasicAuthBlogAdapter) Name() string { return PlatformWordPress }

type wpSite struct {
	api      string
	username string
	password string
}

func (a *BasicAuthBlogAdapter) site(ctx context.Context) (wpSite, error) {
	s := wpSite{
		api:      strings.TrimRight(strings.TrimSpace(a.settings.Get(ctx, store.KeyWordPressURL, "")), "/"),
		username: strings.TrimSpace(a.settings.Get(ctx, store.KeyWordPressUsername, "")),
		password: a.settings.Get(ctx, store.KeyWordPressPassword, ""),
	}
	if s.api == "" || s.username == "" || s.password == "" {
		return wpSite{}, fmt.Errorf("%w: WordPress credentials not configured", apperr.ErrConfiguration)
	}
	s.api += wordPressAPIPath
	return s, nil
}

func (a *BasicAuthBlogAdapter) do(ctx context.Context, site wpSite, method, path string, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, site.api+path, rd)
	if err != nil {
		return 0, nil, err
	}
	req.SetBasicAuth(site.username, site.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}

type wpPost struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Status     string   `json:"status"`
	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// Publish creates a published post. Categories and tags are sent as names,
// not resolved to WordPress term ids.
func (a *BasicAuthBlogAdapter) Publish(ctx context.Context, post store.Post) (string, error) {
	site, err := a.site(ctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	status, body, err := a.do(ctx, site, http.MethodPost, "/posts", wpPost{
		Title:      post.Title,
		Content:    post.Content,
		Status:     "publish",
		Categories: post.CategoryList(),
		Tags:       post.TagList(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: WordPress request failed: %w", apperr.ErrPublish, err)
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("%w: WordPress API error: %s", apperr.ErrPublish, body)
	}

	var created struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("%w: WordPress response has no post id: %s", apperr.ErrPublish, body)
	}
	return created.ID.String(), nil
}

// TestConnection checks that the site answers an authenticated posts query.
func (a *BasicAuthBlogAdapter) TestConnection(ctx context.Context) error {
	site, err := a.site(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status, body, err := a.do(ctx, site, http.MethodGet, "/posts?per_page=1", nil)
	if err != nil {
		return fmt.Errorf("WordPress connection failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", status, body)
	}
	return nil
}

// RemoteTerm is a category or tag as WordPress reports it.
type RemoteTerm struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}

// RemoteTerms holds both remote taxonomies.
type RemoteTerms struct {
	Categories []RemoteTerm `json:"categories"`
	Tags       []RemoteTerm `json:"tags"`
}

func (a *BasicAuthBlogAdapter) fetchTerms(ctx context.Context, site wpSite, kind string) ([]RemoteTerm, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status, body, err := a.do(ctx, site, http.MethodGet, "/"+kind, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch WordPress %s: %w", kind, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("fetch WordPress %s: HTTP %d: %s", kind, status, body)
	}
	terms := []RemoteTerm{}
	if err := json.Unmarshal(body, &terms); err != nil {
		return nil, fmt.Errorf("decode WordPress %s: %w", kind, err)
	}
	return terms, nil
}

func (a *BasicAuthBlogAdapter) termsOrEmpty(ctx context.Context, kind string) []RemoteTerm {
	site, err := a.site(ctx)
	if err != nil {
		return []RemoteTerm{}
	}
	terms, err := a.fetchTerms(ctx, site, kind)
	if err != nil {
		a.logger.Warn("wordpress taxonomy fetch failed", zap.String("kind", kind), zap.Error(err))
		return []RemoteTerm{}
	}
	return terms
}

// Categories lists the site's categories, or an empty list on any failure.
func (a *BasicAuthBlogAdapter) Categories(ctx context.Context) []RemoteTerm {
	return a.termsOrEmpty(ctx, "categories")
}

// Tags lists the site's tags, or an empty list on any failure.
func (a *BasicAuthBlogAdapter) Tags(ctx context.Context) []RemoteTerm {
	return a.termsOrEmpty(ctx, "tags")
}

// RemoteTerms fetches categories and tags concurrently. Unlike Categories and
// Tags it reports failures.
func (a *BasicAuthBlogAdapter) RemoteTerms(ctx context.Context) (RemoteTerms, error) {
	site, err := a.site(ctx)
	if err != nil {
		return RemoteTerms{}, err
	}
	var out RemoteTerms
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Categories, err = a.fetchTerms(gctx, site, "categories")
		return err
	})
	g.Go(func() error {
		var err error
		out.Tags, err = a.fetchTerms(gctx, site, "tags")
		return err
	})
	if err := g.Wait(); err != nil {
		return RemoteTerms{}, err
	}
	return out, nil
}
