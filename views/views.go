// Package views renders the admin pages.
//
// Every page is exposed as a templ.Component so handlers can render it with
// the same helpers regardless of how it is built. The markup lives in
// embedded html/template files that share one layout.
package views

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/blogpublisher/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date":      formatDate,
	"datetime":  formatDateTime,
	"excerpt":   excerpt,
	"join":      strings.Join,
	"termNames": termNames,
	"platform":  platformLabel,
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"dashboard", "setup", "settings", "editor", "tags", "error"} {
		pages[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/partials.html", "templates/"+name+".html"))
	}
}

func page(name string, data any) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		t, ok := pages[name]
		if !ok {
			return fmt.Errorf("views: unknown page %q", name)
		}
		return t.ExecuteTemplate(w, "layout", data)
	})
}

// Flash is a one-shot message shown at the top of a page.
type Flash struct {
	Kind    string // "success" or "error"
	Message string
}

// Page carries the data every page needs.
type Page struct {
	Title     string
	CSRFToken string
	Flashes   []Flash
	Version   string
}

// SettingsForm is the editable platform configuration. Secrets are never
// echoed back; the Has* flags only tell the form whether one is stored.
type SettingsForm struct {
	BlogType          string
	BloggerBlogID     string
	BloggerClientID   string
	WordPressURL      string
	WordPressUsername string

	HasBloggerSecret     bool
	HasWordPressPassword bool
}

type dashboardData struct {
	Page
	Posts    []store.Post
	Stats    store.Stats
	BlogType string
}

// Dashboard lists all posts with summary counts.
func Dashboard(p Page, posts []store.Post, stats store.Stats, blogType string) templ.Component {
	return page("dashboard", dashboardData{Page: p, Posts: posts, Stats: stats, BlogType: blogType})
}

type settingsData struct {
	Page
	Form         SettingsForm
	Errors       map[string]string
	BloggerState string
	Platforms    []string
}

// Setup is the first-run configuration page.
func Setup(p Page, form SettingsForm, errs map[string]string, platforms []string) templ.Component {
	return page("setup", settingsData{Page: p, Form: form, Errors: errs, Platforms: platforms})
}

// Settings edits the platform configuration and shows the Blogger
// connection state.
func Settings(p Page, form SettingsForm, errs map[string]string, platforms []string, bloggerState string) templ.Component {
	return page("settings", settingsData{Page: p, Form: form, Errors: errs, Platforms: platforms, BloggerState: bloggerState})
}

type editorData struct {
	Page
	Post       store.Post
	IsNew      bool
	Tags       []store.Term
	Categories []store.Term
	BlogType   string
}

// Editor creates (post.ID == 0) or edits a post.
func Editor(p Page, post store.Post, tags, categories []store.Term, blogType string) templ.Component {
	return page("editor", editorData{
		Page:       p,
		Post:       post,
		IsNew:      post.ID == 0,
		Tags:       tags,
		Categories: categories,
		BlogType:   blogType,
	})
}

type tagsData struct {
	Page
	Tags       []store.Term
	Categories []store.Term
}

// ManageTags lists and edits the available tags and categories.
func ManageTags(p Page, tags, categories []store.Term) templ.Component {
	return page("tags", tagsData{Page: p, Tags: tags, Categories: categories})
}

type errorData struct {
	Page
	Code    int
	Message string
}

func NotFound() templ.Component {
	return page("error", errorData{Page: Page{Title: "Not found"}, Code: 404, Message: "The page you are looking for does not exist."})
}

func ServerError() templ.Component {
	return page("error", errorData{Page: Page{Title: "Server error"}, Code: 500, Message: "Something went wrong. Check the server log for details."})
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006")
}

func formatDateTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 2, 2006 15:04")
}

func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

func termNames(terms []store.Term) []string {
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, t.Name)
	}
	return names
}

func platformLabel(name string) string {
	switch name {
	case "blogger":
		return "Blogger"
	case "wordpress":
		return "WordPress"
	case "":
		return "Not set"
	}
	return name
}
