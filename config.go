package blogpublisher

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is prepended to every environment variable, e.g. BLOGPUB_PORT.
const EnvPrefix = "BLOGPUB"

// Config holds all runtime configuration. Keys are shared by config files
// and environment variables.
type Config struct {
	Host         string `mapstructure:"host"`          // listen host (default "127.0.0.1")
	Port         int    `mapstructure:"port"`          // listen port (default 5000)
	BaseURL      string `mapstructure:"base_url"`      // public URL used for OAuth redirects
	DatabasePath string `mapstructure:"database_path"` // SQLite path (default "instance/blog_publisher.db")

	SessionSecret string `mapstructure:"session_secret"` // required to serve
	CookieSecure  bool   `mapstructure:"cookie_secure"`  // set true behind HTTPS
	Environment   string `mapstructure:"environment"`    // "development" or "production"
	DisableCSRF   bool   `mapstructure:"disable_csrf"`   // tests only

	TaxonomyCacheTTL time.Duration `mapstructure:"taxonomy_cache_ttl"` // default 5m
}

var configDefaults = map[string]any{
	"host":               "127.0.0.1",
	"port":               5000,
	"base_url":           "",
	"database_path":      "instance/blog_publisher.db",
	"session_secret":     "",
	"cookie_secure":      false,
	"environment":        "development",
	"disable_csrf":       false,
	"taxonomy_cache_ttl": 5 * time.Minute,
}

// LoadConfig reads the optional config file at path (any format viper
// understands, including .env) and overlays BLOGPUB_* environment variables.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	for k, val := range configDefaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://" + c.Addr()
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.DatabasePath == "" {
		c.DatabasePath = "instance/blog_publisher.db"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.TaxonomyCacheTTL == 0 {
		c.TaxonomyCacheTTL = 5 * time.Minute
	}
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// OAuthRedirectURL is where Google sends the user back after consent.
func (c Config) OAuthRedirectURL() string {
	return c.BaseURL + "/auth/blogger/callback"
}

// IsDevelopment reports whether the app runs in development mode.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the application logger (default zap.NewNop).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithHTTPClient sets the client used for outbound platform and OAuth calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithStaticDir serves /static from dir on disk instead of the embedded assets.
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithBloggerEndpoint points the Blogger API client at endpoint (used in tests).
func WithBloggerEndpoint(endpoint string) Option {
	return func(a *App) {
		a.bloggerEndpoint = endpoint
	}
}

// WithOAuthEndpoint overrides the Google OAuth2 authorization and token URLs.
func WithOAuthEndpoint(authURL, tokenURL string) Option {
	return func(a *App) {
		a.oauthAuthURL = authURL
		a.oauthTokenURL = tokenURL
	}
}

// WithClock overrides the time source for stored dates.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}
