package blogpublisher

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/blogpublisher/store"
	"github.com/eringen/blogpublisher/views"
)

func (a *App) configured(ctx context.Context) bool {
	return a.Store.Settings().Get(ctx, store.KeyConfigured, "") == "true"
}

func (a *App) blogType(ctx context.Context) string {
	return a.Store.Settings().Get(ctx, store.KeyBlogType, "")
}

func (a *App) handleDashboard(c echo.Context) error {
	ctx := c.Request().Context()
	if !a.configured(ctx) {
		return c.Redirect(http.StatusFound, "/setup")
	}
	posts, err := a.Store.Posts().List(ctx)
	if err != nil {
		return err
	}
	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return err
	}
	return Render(c, views.Dashboard(a.page(c, "Dashboard"), posts, stats, a.blogType(ctx)))
}

func (a *App) handleSetup(c echo.Context) error {
	form := a.settingsForm(c.Request().Context())
	return Render(c, views.Setup(a.page(c, "Setup"), form, nil, a.Platforms.Names()))
}

func (a *App) handleSetupSave(c echo.Context) error {
	form, values, errs := a.bindSettingsForm(c)
	if len(errs) > 0 {
		return RenderStatus(c, http.StatusBadRequest, views.Setup(a.page(c, "Setup"), form, errs, a.Platforms.Names()))
	}
	values[store.KeyConfigured] = "true"
	if err := a.Store.SaveSettings(c.Request().Context(), values); err != nil {
		return err
	}
	a.addFlash(c, flashSuccess, "Setup completed successfully!")
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) handleSettings(c echo.Context) error {
	ctx := c.Request().Context()
	form := a.settingsForm(ctx)
	return Render(c, views.Settings(a.page(c, "Settings"), form, nil, a.Platforms.Names(), string(a.Credentials.State(ctx))))
}

func (a *App) handleSettingsSave(c echo.Context) error {
	ctx := c.Request().Context()
	form, values, errs := a.bindSettingsForm(c)
	if len(errs) > 0 {
		return RenderStatus(c, http.StatusBadRequest,
			views.Settings(a.page(c, "Settings"), form, errs, a.Platforms.Names(), string(a.Credentials.State(ctx))))
	}
	if err := a.Store.SaveSettings(ctx, values); err != nil {
		return err
	}
	a.addFlash(c, flashSuccess, "Settings updated successfully!")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

// settingsForm loads the stored configuration for display. Secrets are
// reported as present or absent, never returned.
func (a *App) settingsForm(ctx context.Context) views.SettingsForm {
	s := a.Store.Settings()
	return views.SettingsForm{
		BlogType:             s.Get(ctx, store.KeyBlogType, ""),
		BloggerBlogID:        s.Get(ctx, store.KeyBloggerBlogID, ""),
		BloggerClientID:      s.Get(ctx, store.KeyBloggerClientID, ""),
		WordPressURL:         s.Get(ctx, store.KeyWordPressURL, ""),
		WordPressUsername:    s.Get(ctx, store.KeyWordPressUsername, ""),
		HasBloggerSecret:     s.Get(ctx, store.KeyBloggerClientSecret, "") != "",
		HasWordPressPassword: s.Get(ctx, store.KeyWordPressPassword, "") != "",
	}
}

// bindSettingsForm reads the setup/settings form. The returned values are
// the settings to write; an empty secret field is left out so the stored
// secret is kept.
func (a *App) bindSettingsForm(c echo.Context) (views.SettingsForm, map[string]string, map[string]string) {
	ctx := c.Request().Context()
	field := func(name string) string {
		return strings.TrimSpace(c.FormValue(name))
	}
	form := views.SettingsForm{
		BlogType:          field("blog_type"),
		BloggerBlogID:     field("blogger_blog_id"),
		BloggerClientID:   field("blogger_client_id"),
		WordPressURL:      strings.TrimRight(field("wordpress_url"), "/"),
		WordPressUsername: field("wordpress_username"),
	}
	bloggerSecret := field("blogger_client_secret")
	wpPassword := c.FormValue("wordpress_password")

	v := store.NewValidator()
	_, err := a.Platforms.Lookup(form.BlogType)
	v.Check(err == nil, "blog_type", "Choose a publishing platform")
	if form.WordPressURL != "" {
		v.Check(strings.HasPrefix(form.WordPressURL, "http://") || strings.HasPrefix(form.WordPressURL, "https://"),
			"wordpress_url", "WordPress URL must start with http:// or https://")
	}

	stored := a.settingsForm(ctx)
	form.HasBloggerSecret = bloggerSecret != "" || stored.HasBloggerSecret
	form.HasWordPressPassword = wpPassword != "" || stored.HasWordPressPassword
	if !v.Valid() {
		return form, nil, v.Errors
	}

	values := map[string]string{
		store.KeyBlogType:          form.BlogType,
		store.KeyBloggerBlogID:     form.BloggerBlogID,
		store.KeyBloggerClientID:   form.BloggerClientID,
		store.KeyWordPressURL:      form.WordPressURL,
		store.KeyWordPressUsername: form.WordPressUsername,
	}
	if bloggerSecret != "" {
		values[store.KeyBloggerClientSecret] = bloggerSecret
	}
	if wpPassword != "" {
		values[store.KeyWordPressPassword] = wpPassword
	}
	return form, values, nil
}

func (a *App) handleNewPost(c echo.Context) error {
	ctx := c.Request().Context()
	tags, categories, err := a.terms(ctx)
	if err != nil {
		return err
	}
	return Render(c, views.Editor(a.page(c, "New post"), store.Post{}, tags, categories, a.blogType(ctx)))
}

func (a *App) handleEditPost(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := paramID(c)
	if err != nil {
		return echo.ErrNotFound
	}
	post, err := a.Store.Posts().Get(ctx, id)
	if err != nil {
		return err
	}
	tags, categories, err := a.terms(ctx)
	if err != nil {
		return err
	}
	return Render(c, views.Editor(a.page(c, "Edit post"), post, tags, categories, a.blogType(ctx)))
}

func (a *App) handleManageTags(c echo.Context) error {
	tags, categories, err := a.terms(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, views.ManageTags(a.page(c, "Tags & categories"), tags, categories))
}

func (a *App) terms(ctx context.Context) (tags, categories []store.Term, err error) {
	if tags, err = a.Taxonomy.Tags(ctx); err != nil {
		return nil, nil, err
	}
	if categories, err = a.Taxonomy.Categories(ctx); err != nil {
		return nil, nil, err
	}
	return tags, categories, nil
}
