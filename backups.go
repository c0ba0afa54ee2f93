package blogpublisher

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/blogpublisher/backup"
)

const maxBackupBytes = 32 << 20

func (a *App) handleBackupExport(c echo.Context) error {
	now := a.now()
	doc, err := backup.Export(c.Request().Context(), a.Store, now)
	if err != nil {
		return err
	}
	data, err := backup.Encode(doc)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", backup.DefaultFileName(now)))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, data)
}

// handleBackupImport accepts the document either as the multipart field
// "file" or as the raw request body.
func (a *App) handleBackupImport(c echo.Context) error {
	data, err := readBackupUpload(c)
	if err != nil {
		return JSONFailure(c, http.StatusBadRequest, err.Error())
	}
	res, err := backup.Import(c.Request().Context(), a.Store, data)
	if err != nil {
		return a.jsonError(c, err)
	}
	a.Taxonomy.Invalidate()
	a.logger.Info("backup imported",
		zap.Int("posts", res.Posts),
		zap.Int("tags", res.Tags),
		zap.Int("categories", res.Categories),
		zap.Int("settings", res.Settings))
	msg := fmt.Sprintf("Imported %d posts, %d tags, %d categories", res.Posts, res.Tags, res.Categories)
	return JSONSuccess(c, msg, echo.Map{"imported": res})
}

func readBackupUpload(c echo.Context) ([]byte, error) {
	req := c.Request()
	var r io.Reader = req.Body
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("no backup file uploaded")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBackupBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxBackupBytes {
		return nil, errors.New("backup file is too large")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("backup file is empty")
	}
	return data, nil
}
