package blogpublisher

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogpublisher/apperr"
	"github.com/eringen/blogpublisher/backup"
	"github.com/eringen/blogpublisher/store"
	"github.com/eringen/blogpublisher/views"
)

var errInvalidID = errors.New("invalid id")

// paramID parses the :id path parameter.
func paramID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// statusFor maps an error to the HTTP status of a JSON failure.
// Domain failures (configuration, credentials, publish) still answer 200
// with success=false so the page script can show the message.
func statusFor(err error) int {
	var verr store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidID), errors.Is(err, backup.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.As(err, &verr),
		errors.Is(err, apperr.ErrConfiguration),
		errors.Is(err, apperr.ErrAuthorization),
		errors.Is(err, apperr.ErrAuthentication),
		errors.Is(err, apperr.ErrPublish),
		errors.Is(err, store.ErrAlreadyPublished),
		errors.Is(err, store.ErrPublishInProgress):
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// jsonError answers a failed action with the error envelope.
func (a *App) jsonError(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.String("kind", apperr.Kind(err)),
			zap.Error(err))
	}
	resp := JSONResponse{Error: err.Error()}
	var verr store.ValidationError
	if errors.As(err, &verr) {
		resp.Errors = verr.Errors
	}
	return c.JSON(code, resp)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		err = echo.ErrNotFound
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.logger.Error("server error", zap.String("uri", c.Request().RequestURI), zap.Error(err))
		_ = RenderStatus(c, code, views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
