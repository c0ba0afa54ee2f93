// Package markdown renders post content for the editor preview.
//
// Rendering goes through goldmark with the GitHub extensions; the result is
// sanitized with a bluemonday UGC policy, so raw HTML typed into a post
// cannot inject scripts into the admin pages.
package markdown

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		// raw HTML is kept here and filtered by the policy below
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	policy = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	p.AllowAttrs("type", "checked", "disabled").OnElements("input")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// RenderMarkdown writes the sanitized HTML for src to buf.
func RenderMarkdown(buf *bytes.Buffer, src string) error {
	var raw bytes.Buffer
	if err := md.Convert([]byte(src), &raw); err != nil {
		return err
	}
	buf.Write(policy.SanitizeBytes(raw.Bytes()))
	return nil
}

// ToHTML returns the sanitized HTML for src.
func ToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := RenderMarkdown(&buf, src); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Sanitize filters an HTML fragment through the same policy.
func Sanitize(fragment string) string {
	return policy.Sanitize(fragment)
}

// Markdown returns a templ.Component that renders content as HTML.
func Markdown(content string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := RenderMarkdown(&buf, content); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}
