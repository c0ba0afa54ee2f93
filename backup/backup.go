// Package backup exports the whole content store to a single JSON document
// and merges such a document back in.
package backup

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/eringen/blogpublisher/store"
)

//go:embed schema/backup.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

// ErrInvalidDocument is returned when a backup cannot be parsed or does not
// match the backup schema.
var ErrInvalidDocument = errors.New("invalid backup document")

// Document is the backup file format.
type Document struct {
	ExportedAt string            `json:"exported_at,omitempty"`
	Posts      []Post            `json:"posts"`
	Tags       []Term            `json:"tags"`
	Categories []Term            `json:"categories"`
	Settings   map[string]string `json:"settings"`
}

// Post is a backed up post. Ids are not kept; imported posts get new ones.
type Post struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Status        string  `json:"status"`
	CreatedDate   string  `json:"created_date"`
	PublishedDate *string `json:"published_date"`
	BlogTarget    string  `json:"blog_target"`
	ExternalID    *string `json:"external_id"`
	Tags          string  `json:"tags"`
	Categories    string  `json:"categories"`
}

// Term is a backed up tag or category.
type Term struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UsageCount  int    `json:"usage_count"`
	CreatedDate string `json:"created_date"`
}

// Result counts what an import wrote.
type Result struct {
	Posts      int `json:"posts"`
	Tags       int `json:"tags"`
	Categories int `json:"categories"`
	Settings   int `json:"settings"`
}

// Store is the part of *store.Store a backup needs.
type Store interface {
	Repos() store.Repos
	WithTx(ctx context.Context, fn func(store.Repos) error) error
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshaling schema JSON: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("backup.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("adding schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("backup.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compiling schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Validate checks data against the backup schema.
func Validate(data []byte) error {
	schema, err := getSchema()
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return nil
}

// Export builds a document from the current store contents. Secrets and
// OAuth state are left out of the settings section.
func Export(ctx context.Context, s Store, now time.Time) (Document, error) {
	r := s.Repos()
	doc := Document{
		ExportedAt: now.UTC().Format(time.RFC3339),
		Posts:      []Post{},
		Tags:       []Term{},
		Categories: []Term{},
		Settings:   map[string]string{},
	}

	posts, err := r.Posts.List(ctx)
	if err != nil {
		return Document{}, err
	}
	// oldest first, so a restore recreates them in the original order
	for i := len(posts) - 1; i >= 0; i-- {
		doc.Posts = append(doc.Posts, fromPost(posts[i]))
	}

	tags, err := r.Tags.List(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, t := range tags {
		doc.Tags = append(doc.Tags, fromTerm(t))
	}
	cats, err := r.Categories.List(ctx)
	if err != nil {
		return Document{}, err
	}
	for _, c := range cats {
		doc.Categories = append(doc.Categories, fromTerm(c))
	}

	settings, err := r.Settings.All(ctx)
	if err != nil {
		return Document{}, err
	}
	for k, v := range settings {
		if !store.IsSensitiveKey(k) {
			doc.Settings[k] = v
		}
	}
	return doc, nil
}

// Import merges a backup into the store in one transaction. Tags and
// categories are merged by name; posts are always appended, so importing
// the same backup twice duplicates its posts.
func Import(ctx context.Context, s Store, data []byte) (Result, error) {
	if err := Validate(data); err != nil {
		return Result{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	var res Result
	err := s.WithTx(ctx, func(r store.Repos) error {
		res = Result{}
		for _, t := range doc.Tags {
			created, err := r.Tags.Merge(ctx, toTerm(t))
			if err != nil {
				return err
			}
			if created {
				res.Tags++
			}
		}
		for _, c := range doc.Categories {
			created, err := r.Categories.Merge(ctx, toTerm(c))
			if err != nil {
				return err
			}
			if created {
				res.Categories++
			}
		}
		for _, p := range doc.Posts {
			if _, err := r.Posts.Import(ctx, toPost(p)); err != nil {
				return err
			}
			res.Posts++
		}
		for k, v := range doc.Settings {
			if store.IsSensitiveKey(k) {
				continue
			}
			if err := r.Settings.Set(ctx, k, v); err != nil {
				return err
			}
			res.Settings++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// DefaultFileName names a backup taken at t.
func DefaultFileName(t time.Time) string {
	return "backup_blog_publisher_" + t.Format("20060102_150405") + ".json"
}

// Encode writes doc as indented JSON without HTML escaping.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile exports the store to path, or to DefaultFileName in the working
// directory when path is empty, and returns the path written.
func WriteFile(ctx context.Context, s Store, path string, now time.Time) (string, error) {
	if path == "" {
		path = DefaultFileName(now)
	}
	doc, err := Export(ctx, s, now)
	if err != nil {
		return "", err
	}
	data, err := Encode(doc)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return path, nil
}

// ReadFile imports the backup stored at path.
func ReadFile(ctx context.Context, s Store, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, fmt.Errorf("backup file not found: %s", path)
		}
		return Result{}, fmt.Errorf("read backup: %w", err)
	}
	return Import(ctx, s, data)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02",
}

// parseTime accepts RFC 3339 and zone-less ISO timestamps, which are read as
// UTC. Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func fromPost(p store.Post) Post {
	out := Post{
		Title:       p.Title,
		Content:     p.Content,
		Status:      string(p.Status),
		CreatedDate: p.CreatedDate.UTC().Format(time.RFC3339Nano),
		BlogTarget:  p.BlogTarget,
		Tags:        p.Tags,
		Categories:  p.Categories,
	}
	if p.PublishedDate != nil {
		s := p.PublishedDate.UTC().Format(time.RFC3339Nano)
		out.PublishedDate = &s
	}
	if p.ExternalID != "" {
		id := p.ExternalID
		out.ExternalID = &id
	}
	return out
}

func toPost(p Post) store.Post {
	out := store.Post{
		Title:       p.Title,
		Content:     p.Content,
		Status:      store.Status(p.Status),
		CreatedDate: parseTime(p.CreatedDate),
		BlogTarget:  p.BlogTarget,
		Tags:        p.Tags,
		Categories:  p.Categories,
	}
	if p.PublishedDate != nil {
		if t := parseTime(*p.PublishedDate); !t.IsZero() {
			out.PublishedDate = &t
		}
	}
	if p.ExternalID != nil {
		out.ExternalID = *p.ExternalID
	}
	return out
}

func fromTerm(t store.Term) Term {
	return Term{
		Name:        t.Name,
		Description: t.Description,
		UsageCount:  t.UsageCount,
		CreatedDate: t.CreatedDate.UTC().Format(time.RFC3339Nano),
	}
}

func toTerm(t Term) store.Term {
	return store.Term{
		Name:        t.Name,
		Description: t.Description,
		UsageCount:  t.UsageCount,
		CreatedDate: parseTime(t.CreatedDate),
	}
}
