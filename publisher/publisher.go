// Package publisher sends local posts to external blogging platforms.
//
// Each platform is an Adapter registered under the name stored in
// Post.BlogTarget. Service ties an adapter call to the post's publish lock
// and records the outcome.
package publisher

import (
	"context"
	"fmt"
	"sort"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/store"
)

// Platform names.
const (
	PlatformBlogger   = "blogger"
	PlatformWordPress = "wordpress"
)

// Adapter publishes a post to one platform and returns the platform's id for
// it. Adapters make one outbound publish call and never write to the content
// store.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, post store.Post) (string, error)
}

// Registry maps platform names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds a, replacing any adapter with the same name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: post has no blog target", apperr.ErrConfiguration)
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported blog platform %q", apperr.ErrConfiguration, name)
	}
	return a, nil
}

// Names lists the registered platforms in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
