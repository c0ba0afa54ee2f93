// Package blogpublisher is a single-user admin app for drafting blog posts
// and publishing them to Blogger or WordPress. It is built with Go, Echo,
// and templ.
//
// The root package owns the web layer: configuration, middleware, route
// handlers, and the wiring of the store, credential manager, and publisher
// packages into one App.
package blogpublisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofrs/flock"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/eringen/blogpublisher/credentials"
	"github.com/eringen/blogpublisher/publisher"
	"github.com/eringen/blogpublisher/store"
)

// Version is set at build time with -ldflags "-X github.com/eringen/blogpublisher.Version=...".
var Version = "dev"

// App is the central application. It wires together the store, the
// credential manager, the publisher adapters, and the HTTP handlers.
type App struct {
	Config      Config
	Echo        *echo.Echo
	Store       *store.Store
	Credentials *credentials.Manager
	Platforms   *publisher.Registry
	Publisher   *publisher.Service
	WordPress   *publisher.BasicAuthBlogAdapter
	Taxonomy    *TaxonomyCache

	lock            *flock.Flock
	logger          *zap.Logger
	httpClient      *http.Client
	staticDir       string
	bloggerEndpoint string
	oauthAuthURL    string
	oauthTokenURL   string
	now             func() time.Time
}

// New creates an App with the given configuration. Call Init (or Start)
// before serving.
func New(cfg Config, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:     cfg,
		Echo:       echo.New(),
		logger:     zap.NewNop(),
		httpClient: &http.Client{},
		now:        time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Init opens the database, builds the services, and registers middleware
// and routes. It runs once; later calls are no-ops.
func (a *App) Init(ctx context.Context) error {
	if a.Store != nil {
		return nil
	}
	if a.Config.SessionSecret == "" {
		return errors.New("blogpublisher: session_secret is required")
	}

	s, err := store.Open(a.Config.DatabasePath, store.WithClock(a.now))
	if err != nil {
		return fmt.Errorf("blogpublisher: init store: %w", err)
	}
	lock := flock.New(a.Config.DatabasePath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		s.Close()
		return fmt.Errorf("blogpublisher: acquire lock: %w", err)
	}
	if !ok {
		s.Close()
		return fmt.Errorf("blogpublisher: another instance is serving %s", a.Config.DatabasePath)
	}
	// a crash mid-publish leaves the publishing flag set; holding the file
	// lock means nothing can be in flight yet
	if n, err := s.Posts().ResetPublishing(ctx); err != nil {
		_ = lock.Unlock()
		s.Close()
		return fmt.Errorf("blogpublisher: reset publish locks: %w", err)
	} else if n > 0 {
		a.logger.Warn("released stale publish locks", zap.Int64("posts", n))
	}
	a.Store = s
	a.lock = lock
	a.buildServices()

	a.setupMiddleware()
	a.setupRoutes()
	return nil
}

func (a *App) buildServices() {
	settings := a.Store.Settings()

	credOpts := []credentials.Option{
		credentials.WithHTTPClient(a.httpClient),
		credentials.WithLogger(a.logger.Named("credentials")),
		credentials.WithClock(a.now),
	}
	if a.oauthAuthURL != "" || a.oauthTokenURL != "" {
		ep := google.Endpoint
		if a.oauthAuthURL != "" {
			ep.AuthURL = a.oauthAuthURL
		}
		if a.oauthTokenURL != "" {
			ep.TokenURL = a.oauthTokenURL
		}
		ep.AuthStyle = oauth2.AuthStyleInHeader
		credOpts = append(credOpts, credentials.WithEndpoint(ep))
	}
	a.Credentials = credentials.NewManager(settings, a.Config.OAuthRedirectURL(), credOpts...)

	var bloggerOpts []option.ClientOption
	if a.bloggerEndpoint != "" {
		bloggerOpts = append(bloggerOpts, option.WithEndpoint(a.bloggerEndpoint))
	}
	blogger := publisher.NewTokenBlogAdapter(settings, a.Credentials, a.logger.Named("blogger"), bloggerOpts...)
	a.WordPress = publisher.NewBasicAuthBlogAdapter(settings, a.httpClient, a.logger.Named("wordpress"))

	a.Platforms = publisher.NewRegistry(blogger, a.WordPress)
	a.Publisher = publisher.NewService(a.Store.Posts(), a.Platforms,
		publisher.WithLogger(a.logger.Named("publisher")),
		publisher.WithClock(a.now),
	)
	a.Taxonomy = NewTaxonomyCache(a.Store.Tags(), a.Store.Categories(), a.Config.TaxonomyCacheTTL)
}

// Start initializes the app and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.logger.Info("listening", zap.String("addr", a.Config.Addr()), zap.String("url", a.Config.BaseURL))
	if err := a.Echo.Start(a.Config.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.lock != nil {
		if uerr := a.lock.Unlock(); uerr != nil {
			a.logger.Warn("release lock", zap.Error(uerr))
		}
	}
	return err
}

func (a *App) setupRoutes() {
	e := a.Echo

	if a.staticDir != "" {
		e.Static("/static", a.staticDir)
	} else {
		e.StaticFS("/static", echo.MustSubFS(StaticAssets, "static"))
	}

	// Pages
	e.GET("/", a.handleDashboard)
	e.GET("/setup", a.handleSetup)
	e.POST("/setup", a.handleSetupSave)
	e.GET("/settings", a.handleSettings)
	e.POST("/settings", a.handleSettingsSave)
	e.GET("/posts/new", a.handleNewPost)
	e.GET("/posts/edit/:id", a.handleEditPost)
	e.GET("/tags/manage", a.handleManageTags)

	// JSON actions
	e.POST("/posts/save", a.handleSavePost)
	e.POST("/posts/publish", a.handlePublishPost)
	e.POST("/posts/delete/:id", a.handleDeletePost)
	e.POST("/tags/add", a.handleAddTerm(termTags))
	e.POST("/tags/delete/:id", a.handleDeleteTerm(termTags))
	e.POST("/tags/categories/add", a.handleAddTerm(termCategories))
	e.POST("/tags/categories/delete/:id", a.handleDeleteTerm(termCategories))

	api := e.Group("/api")
	api.GET("/tags", a.handleListTerms(termTags))
	api.GET("/categories", a.handleListTerms(termCategories))
	api.GET("/info", a.handleInfo)
	api.POST("/preview", a.handlePreview)
	api.GET("/wordpress/test", a.handleWordPressTest)
	api.GET("/wordpress/terms", a.handleWordPressTerms)

	// Blogger OAuth
	e.GET("/auth/blogger", a.handleBloggerAuth)
	e.GET("/auth/blogger/callback", a.handleBloggerCallback)
	e.POST("/auth/blogger/disconnect", a.handleBloggerDisconnect)

	// Backup
	e.GET("/backup/export", a.handleBackupExport)
	e.POST("/backup/import", a.handleBackupImport)
}
