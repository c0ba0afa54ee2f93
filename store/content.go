package store

import (
	"context"
	"strings"
)

// SavePost creates or updates a post and bumps the usage counters of every
// tag and category it references, all in one transaction. Counters are
// bumped on every save, drafts included.
func (s *Store) SavePost(ctx context.Context, in PostInput) (Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = strings.TrimSpace(in.Tags)
	in.Categories = strings.TrimSpace(in.Categories)
	v := NewValidator()
	validatePost(v, in)
	if !v.Valid() {
		return Post{}, v.ValidationError()
	}

	var saved Post
	err := s.WithTx(ctx, func(r Repos) error {
		if in.ID != 0 {
			p, err := r.Posts.Get(ctx, in.ID)
			if err != nil {
				return err
			}
			p.Title, p.Content, p.Tags, p.Categories = in.Title, in.Content, in.Tags, in.Categories
			if err := r.Posts.Update(ctx, &p); err != nil {
				return err
			}
			saved = p
		} else {
			p := Post{
				Title:      in.Title,
				Content:    in.Content,
				Tags:       in.Tags,
				Categories: in.Categories,
				BlogTarget: in.BlogTarget,
			}
			if err := r.Posts.Create(ctx, &p); err != nil {
				return err
			}
			saved = p
		}
		if err := r.Tags.IncrementUsage(ctx, saved.TagList()); err != nil {
			return err
		}
		return r.Categories.IncrementUsage(ctx, saved.CategoryList())
	})
	if err != nil {
		return Post{}, err
	}
	return saved, nil
}

// SaveSettings writes several settings atomically.
func (s *Store) SaveSettings(ctx context.Context, values map[string]string) error {
	return s.WithTx(ctx, func(r Repos) error {
		for k, v := range values {
			if err := r.Settings.Set(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Stats counts posts, tags and categories.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.PostCounts, err = s.Posts().Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.Tags, err = s.Tags().Count(ctx); err != nil {
		return Stats{}, err
	}
	if st.Categories, err = s.Categories().Count(ctx); err != nil {
		return Stats{}, err
	}
	return st, nil
}

type seedTerm struct {
	name, description string
}

var defaultTags = []seedTerm{
	{"tutorial", "Step-by-step guides and tutorials"},
	{"howto", "How-to guides and instructions"},
	{"python", "Python programming content"},
	{"web-development", "Web development topics"},
	{"tips", "Quick tips and tricks"},
	{"beginner", "Content for beginners"},
	{"advanced", "Advanced topics"},
	{"code", "Code examples and snippets"},
	{"review", "Reviews and evaluations"},
	{"news", "News and updates"},
}

var defaultCategories = []seedTerm{
	{"Programming", "Programming and development topics"},
	{"Technology", "Technology news and reviews"},
	{"Tutorials", "Educational content and tutorials"},
	{"Personal", "Personal thoughts and experiences"},
	{"Projects", "Project showcases and updates"},
}

// SeedDefaults adds the starter tags and categories that are missing and
// reports how many of each were created.
func (s *Store) SeedDefaults(ctx context.Context) (tags, categories int, err error) {
	err = s.WithTx(ctx, func(r Repos) error {
		for _, t := range defaultTags {
			_, created, err := r.Tags.Add(ctx, t.name, t.description)
			if err != nil {
				return err
			}
			if created {
				tags++
			}
		}
		for _, c := range defaultCategories {
			_, created, err := r.Categories.Add(ctx, c.name, c.description)
			if err != nil {
				return err
			}
			if created {
				categories++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return tags, categories, nil
}
