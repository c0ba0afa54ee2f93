package blogpublisher

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// handleBloggerAuth starts the OAuth flow by sending the user to Google.
func (a *App) handleBloggerAuth(c echo.Context) error {
	url, err := a.Credentials.AuthorizationURL(c.Request().Context())
	if err != nil {
		a.addFlash(c, flashError, "Cannot connect Blogger: "+err.Error())
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	return c.Redirect(http.StatusFound, url)
}

func (a *App) handleBloggerCallback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		a.addFlash(c, flashError, "Blogger authorization was denied: "+reason)
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	err := a.Credentials.HandleCallback(c.Request().Context(), c.QueryParam("code"), c.QueryParam("state"))
	if err != nil {
		a.logger.Warn("blogger authorization failed", zap.Error(err))
		a.addFlash(c, flashError, "Blogger authorization failed: "+err.Error())
		return c.Redirect(http.StatusSeeOther, "/settings")
	}
	a.addFlash(c, flashSuccess, "Blogger account connected.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}

func (a *App) handleBloggerDisconnect(c echo.Context) error {
	if err := a.Credentials.Disconnect(c.Request().Context()); err != nil {
		return err
	}
	a.addFlash(c, flashSuccess, "Blogger account disconnected.")
	return c.Redirect(http.StatusSeeOther, "/settings")
}
