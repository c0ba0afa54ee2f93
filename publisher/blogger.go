package publisher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/blogger/v3"
	"google.golang.org/api/option"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

// TokenProvider hands out a token source backed by a fresh credential.
// *credentials.Manager implements it.
type TokenProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// TokenBlogAdapter publishes to Blogger with OAuth2 credentials.
type TokenBlogAdapter struct {
	settings   store.SettingsRepository
	tokens     TokenProvider
	logger     *zap.Logger
	clientOpts []option.ClientOption
}

// NewTokenBlogAdapter returns a Blogger adapter. Extra client options are
// passed to the Blogger service, e.g. option.WithEndpoint in tests.
func NewTokenBlogAdapter(settings store.SettingsRepository, tokens TokenProvider, logger *zap.Logger, opts ...option.ClientOption) *TokenBlogAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenBlogAdapter{settings: settings, tokens: tokens, logger: logger, clientOpts: opts}
}

func (a *TokenBlogAdapter) Name() string { return PlatformBlogger }

// Publish inserts post into the configured blog. Tags become labels;
// categories are not supported by Blogger and are ignored.
func (a *TokenBlogAdapter) Publish(ctx context.Context, post store.Post) (string, error) {
	blogID := strings.TrimSpace(a.settings.Get(ctx, store.KeyBloggerBlogID, ""))
	if blogID == "" {
		return "", fmt.Errorf("%w: blogger blog id is not configured", apperr.ErrConfiguration)
	}
	ts, err := a.tokens.TokenSource(ctx)
	if err != nil {
		return "", err
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}, a.clientOpts...)
	svc, err := blogger.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: blogger client: %w", apperr.ErrPublish, err)
	}

	res, err := svc.Posts.Insert(blogID, &blogger.Post{
		Title:   post.Title,
		Content: post.Content,
		Labels:  post.TagList(),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: Blogger API error: %w", apperr.ErrPublish, err)
	}
	if res.Id == "" {
		return "", fmt.Errorf("%w: Blogger API returned no post id", apperr.ErrPublish)
	}
	a.logger.Debug("blogger post inserted", zap.String("blog_id", blogID), zap.String("url", res.Url))
	return res.Id, nil
}
