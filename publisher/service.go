package publisher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

// Service publishes stored posts through the registry.
type Service struct {
	posts    store.PostRepository
	registry *Registry
	now      func() time.Time
	logger   *zap.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(posts store.PostRepository, registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{
		posts:    posts,
		registry: registry,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish sends post id to the platform it was created for and records the
// external id. The post stays a draft on any failure. A post holds a
// publish lock for the duration of the outbound call, so a concurrent
// second attempt fails with store.ErrPublishInProgress instead of
// publishing twice.
func (s *Service) Publish(ctx context.Context, id int64) (store.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return store.Post{}, err
	}
	if post.IsPublished() {
		return store.Post{}, store.ErrAlreadyPublished
	}
	adapter, err := s.registry.Lookup(post.BlogTarget)
	if err != nil {
		return store.Post{}, err
	}
	if err := s.posts.BeginPublish(ctx, id); err != nil {
		return store.Post{}, err
	}

	log := s.logger.With(zap.Int64("post_id", id), zap.String("platform", adapter.Name()))
	log.Info("publishing post")

	externalID, err := adapter.Publish(ctx, post)
	if err != nil {
		s.release(ctx, id, log)
		log.Warn("publish failed", zap.String("kind", apperr.Kind(err)), zap.Error(err))
		return store.Post{}, err
	}

	at := s.now().UTC()
	if err := s.posts.MarkPublished(context.WithoutCancel(ctx), id, externalID, at); err != nil {
		// the remote post exists; keep its id in the log so it can be reconciled
		log.Error("published but could not record result", zap.String("external_id", externalID), zap.Error(err))
		s.release(ctx, id, log)
		return store.Post{}, err
	}
	log.Info("post published", zap.String("external_id", externalID))

	post.Status = store.StatusPublished
	post.ExternalID = externalID
	post.PublishedDate = &at
	post.Publishing = false
	return post, nil
}

func (s *Service) release(ctx context.Context, id int64, log *zap.Logger) {
	if err := s.posts.AbortPublish(context.WithoutCancel(ctx), id); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("could not clear publish lock", zap.Error(err))
	}
}
