package store

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	// StatusScheduled is accepted from backups but nothing produces or acts on it.
	StatusScheduled Status = "scheduled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusScheduled:
		return true
	}
	return false
}

// Post is a locally drafted blog post. Tags and Categories are kept exactly as
// the user typed them (comma separated); use TagList and CategoryList to read
// them as names.
type Post struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Status        Status     `json:"status"`
	CreatedDate   time.Time  `json:"created_date"`
	PublishedDate *time.Time `json:"published_date"`
	BlogTarget    string     `json:"blog_target"`
	ExternalID    string     `json:"external_id"`
	Tags          string     `json:"tags"`
	Categories    string     `json:"categories"`
	Publishing    bool       `json:"-"`
}

// TagList returns the post's tag names, trimmed, without empty entries.
func (p Post) TagList() []string {
	return SplitList(p.Tags)
}

// CategoryList returns the post's category names, trimmed, without empty entries.
func (p Post) CategoryList() []string {
	return SplitList(p.Categories)
}

// IsPublished reports whether a successful publish has been recorded.
func (p Post) IsPublished() bool {
	return p.ExternalID != ""
}

// Term is an available tag or category.
type Term struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UsageCount  int       `json:"usage_count"`
	CreatedDate time.Time `json:"created_date"`
}

// PostInput carries the editable fields of a save request. A zero ID creates
// a new post; BlogTarget is only used on creation.
type PostInput struct {
	ID         int64
	Title      string
	Content    string
	Tags       string
	Categories string
	BlogTarget string
}

// PostCounts summarises the posts table.
type PostCounts struct {
	Total     int `json:"total_posts"`
	Published int `json:"published_posts"`
	Drafts    int `json:"draft_posts"`
}

// Stats summarises the whole content store.
type Stats struct {
	PostCounts
	Tags       int `json:"total_tags"`
	Categories int `json:"total_categories"`
}

// SplitList splits a comma-delimited list (e.g. "go, web ,go") into trimmed,
// non-empty names. Duplicates are kept.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// JoinList joins names with ", ".
func JoinList(names []string) string {
	return strings.Join(names, ", ")
}
