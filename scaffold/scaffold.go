// Package scaffold writes a starter configuration file for a new
// installation.
package scaffold

import (
	"crypto/rand"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"
)

// Templates contains the starter files. They use Go text/template syntax
// and have a .tmpl suffix.
//
//go:embed all:templates
var Templates embed.FS

// ErrExists is returned when the target file is already present.
var ErrExists = errors.New("file already exists")

// Data holds the values written into the starter config.
type Data struct {
	Host          string
	Port          int
	BaseURL       string
	DatabasePath  string
	Environment   string
	SessionSecret string
}

// NewSessionSecret returns 32 random bytes, hex encoded.
func NewSessionSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WriteConfig renders the starter .env file to path. An empty
// SessionSecret is replaced by a fresh random one. Existing files are never
// overwritten.
func WriteConfig(path string, data Data) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if data.SessionSecret == "" {
		secret, err := NewSessionSecret()
		if err != nil {
			return err
		}
		data.SessionSecret = secret
	}

	tmpl, err := template.ParseFS(Templates, "templates/dotenv.tmpl")
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := tmpl.Execute(f, data); err != nil {
		f.Close()
		return fmt.Errorf("execute template: %w", err)
	}
	return f.Close()
}
