package blogpublisher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/blogpublisher/markdown"
	"github.com/eringen/blogpublisher/store"
)

type savePostRequest struct {
	ID         int64  `json:"id" form:"id"`
	Title      string `json:"title" form:"title"`
	Content    string `json:"content" form:"content"`
	Tags       string `json:"tags" form:"tags"`
	Categories string `json:"categories" form:"categories"`
}

type publishRequest struct {
	ID int64 `json:"id" form:"id"`
}

type termRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

type previewRequest struct {
	Content string `json:"content" form:"content"`
}

func badRequest(c echo.Context) error {
	return JSONFailure(c, http.StatusBadRequest, "malformed request body")
}

func (a *App) handleSavePost(c echo.Context) error {
	var req savePostRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	ctx := c.Request().Context()
	post, err := a.Store.SavePost(ctx, store.PostInput{
		ID:         req.ID,
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		Categories: req.Categories,
		BlogTarget: a.blogType(ctx),
	})
	if err != nil {
		return a.jsonError(c, err)
	}
	a.Taxonomy.Invalidate()
	return JSONSuccess(c, "Post saved", echo.Map{"id": post.ID})
}

func (a *App) handlePublishPost(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if req.ID <= 0 {
		return JSONFailure(c, http.StatusBadRequest, "Post ID required")
	}
	post, err := a.Publisher.Publish(c.Request().Context(), req.ID)
	if err != nil {
		return a.jsonError(c, err)
	}
	return JSONSuccess(c, "Post published successfully!", echo.Map{
		"id":          post.ID,
		"external_id": post.ExternalID,
	})
}

func (a *App) handleDeletePost(c echo.Context) error {
	id, err := paramID(c)
	if err != nil {
		return a.jsonError(c, err)
	}
	if err := a.Store.Posts().Delete(c.Request().Context(), id); err != nil {
		return a.jsonError(c, err)
	}
	return JSONSuccess(c, "Post deleted", nil)
}

// termKind selects the tag or category variant of the term endpoints.
type termKind struct {
	key    string // response field for a created term
	label  string
	repo   func(*store.Store) store.TermRepository
	cached func(*TaxonomyCache, context.Context) ([]store.Term, error)
}

var (
	termTags = termKind{
		key:    "tag",
		label:  "Tag",
		repo:   (*store.Store).Tags,
		cached: (*TaxonomyCache).Tags,
	}
	termCategories = termKind{
		key:    "category",
		label:  "Category",
		repo:   (*store.Store).Categories,
		cached: (*TaxonomyCache).Categories,
	}
)

func (a *App) handleAddTerm(kind termKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req termRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c)
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return JSONFailure(c, http.StatusOK, kind.label+" name is required")
		}
		term, created, err := kind.repo(a.Store).Add(c.Request().Context(), name, strings.TrimSpace(req.Description))
		if err != nil {
			return a.jsonError(c, err)
		}
		if !created {
			return JSONFailure(c, http.StatusOK, kind.label+" already exists")
		}
		a.Taxonomy.Invalidate()
		return JSONSuccess(c, kind.label+" added", echo.Map{kind.key: term})
	}
}

func (a *App) handleDeleteTerm(kind termKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c)
		if err != nil {
			return a.jsonError(c, err)
		}
		if err := kind.repo(a.Store).Delete(c.Request().Context(), id); err != nil {
			return a.jsonError(c, err)
		}
		a.Taxonomy.Invalidate()
		return JSONSuccess(c, kind.label+" deleted", nil)
	}
}

func (a *App) handleListTerms(kind termKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		terms, err := kind.cached(a.Taxonomy, c.Request().Context())
		if err != nil {
			return a.jsonError(c, err)
		}
		return c.JSON(http.StatusOK, terms)
	}
}

// Info describes the running instance.
type Info struct {
	Version      string `json:"version"`
	DatabasePath string `json:"database_path"`
	BlogType     string `json:"blog_type"`
	store.Stats
}

// Info collects version, storage location, and content totals.
func (a *App) Info(ctx context.Context) (Info, error) {
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Version:      Version,
		DatabasePath: a.Store.Path(),
		BlogType:     a.blogType(ctx),
		Stats:        stats,
	}, nil
}

func (a *App) handleInfo(c echo.Context) error {
	info, err := a.Info(c.Request().Context())
	if err != nil {
		return a.jsonError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

func (a *App) handlePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	html, err := markdown.ToHTML(req.Content)
	if err != nil {
		return a.jsonError(c, fmt.Errorf("render preview: %w", err))
	}
	return JSONSuccess(c, "", echo.Map{"html": html})
}

func (a *App) handleWordPressTest(c echo.Context) error {
	if err := a.WordPress.TestConnection(c.Request().Context()); err != nil {
		return JSONFailure(c, http.StatusOK, err.Error())
	}
	return JSONSuccess(c, "Connection successful", nil)
}

func (a *App) handleWordPressTerms(c echo.Context) error {
	terms, err := a.WordPress.RemoteTerms(c.Request().Context())
	if err != nil {
		return JSONFailure(c, http.StatusOK, err.Error())
	}
	return JSONSuccess(c, "", echo.Map{"categories": terms.Categories, "tags": terms.Tags})
}

