package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

type fakeAdapter struct {
	name  string
	calls atomic.Int32
	id    string
	err   error
	// hook runs inside Publish, while the post is locked
	hook func()
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Publish(ctx context.Context, post store.Post) (string, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	return f.id, f.err
}

var publishedAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T, adapters ...Adapter) (*Service, *store.Store) {
	t.Helper()
	s := setupTestStore(t)
	svc := NewService(s.Posts(), NewRegistry(adapters...),
		WithLogger(zaptest.NewLogger(t)),
		WithClock(func() time.Time { return publishedAt }),
	)
	return svc, s
}

func savePost(t *testing.T, s *store.Store, target string) store.Post {
	t.Helper()
	p, err := s.SavePost(context.Background(), store.PostInput{Title: "T", Content: "C", Tags: "go", BlogTarget: target})
	require.NoError(t, err)
	return p
}

func TestPublishSuccess(t *testing.T) {
	wp := &fakeAdapter{name: PlatformWordPress, id: "321"}
	svc, s := newService(t, wp)
	ctx := context.Background()
	p := savePost(t, s, PlatformWordPress)

	got, err := svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPublished, got.Status)
	assert.Equal(t, "321", got.ExternalID)
	require.NotNil(t, got.PublishedDate)
	assert.Equal(t, publishedAt, *got.PublishedDate)

	stored, err := s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPublished, stored.Status)
	assert.Equal(t, "321", stored.ExternalID)
	assert.False(t, stored.Publishing)

	_, err = svc.Publish(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrAlreadyPublished)
	assert.EqualValues(t, 1, wp.calls.Load())
}

func TestPublishWithoutBlogTarget(t *testing.T) {
	wp := &fakeAdapter{name: PlatformWordPress, id: "1"}
	svc, s := newService(t, wp)
	ctx := context.Background()
	p := savePost(t, s, "")

	_, err := svc.Publish(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrConfiguration)
	assert.Zero(t, wp.calls.Load())

	stored, err := s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDraft, stored.Status)
	assert.Empty(t, stored.ExternalID)
	assert.Nil(t, stored.PublishedDate)
	assert.False(t, stored.Publishing)
}

func TestPublishUnknownPlatform(t *testing.T) {
	svc, s := newService(t)
	p := savePost(t, s, "medium")
	_, err := svc.Publish(context.Background(), p.ID)
	require.ErrorIs(t, err, apperr.ErrConfiguration)
}

func TestPublishMissingPost(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Publish(context.Background(), 404)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestPublishFailureLeavesDraft(t *testing.T) {
	wp := &fakeAdapter{name: PlatformWordPress, err: fmt.Errorf("%w: WordPress API error: boom", apperr.ErrPublish)}
	svc, s := newService(t, wp)
	ctx := context.Background()
	p := savePost(t, s, PlatformWordPress)

	_, err := svc.Publish(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrPublish)
	assert.Equal(t, "publish failed: WordPress API error: boom", err.Error())

	stored, err := s.Posts().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDraft, stored.Status)
	assert.False(t, stored.Publishing)

	// usage counters from the save are kept
	tag, err := s.Tags().GetByName(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, 1, tag.UsageCount)

	// the lock was released, so a retry reaches the adapter again
	wp.err = nil
	wp.id = "9"
	_, err = svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, wp.calls.Load())
}

func TestPublishConcurrentAttemptIsRejected(t *testing.T) {
	wp := &fakeAdapter{name: PlatformWordPress, id: "1"}
	svc, s := newService(t, wp)
	ctx := context.Background()
	p := savePost(t, s, PlatformWordPress)

	var inner error
	wp.hook = func() {
		wp.hook = nil
		_, inner = svc.Publish(ctx, p.ID)
	}
	_, err := svc.Publish(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, errors.Is(inner, store.ErrPublishInProgress), "got %v", inner)
	assert.EqualValues(t, 1, wp.calls.Load())
}
