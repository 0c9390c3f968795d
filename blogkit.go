// Package blogkit serves a themeable blog front-end for a publication hosted
// behind a GraphQL content API. It renders the home page and posts with templ,
// paginates the post feed incrementally, builds Open Graph cards, and exposes
// RSS, sitemap, newsletter and metrics endpoints.
//
// Themes own the page components through themes.Views; blogkit handles
// fetching, caching, pagination state, middleware and routing.
package blogkit

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	glog "github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/feed"
	"github.com/eringen/blogkit/og"
	"github.com/eringen/blogkit/themes"
)

// ErrNotFound is returned when the publication or a post does not exist.
var ErrNotFound = content.ErrNotFound

// ContentSource is the content API as the app uses it. *content.Client
// implements it.
type ContentSource interface {
	PostsByPublication(ctx context.Context, host string, first int) (*content.Publication, error)
	MorePosts(ctx context.Context, host string, first int, after string) (*content.PostPage, error)
	SinglePost(ctx context.Context, host, slug string) (*content.Publication, *content.Post, error)
	SubscribeToNewsletter(ctx context.Context, publicationID, email string) (string, error)
}

// App is the central blogkit application. It wires together the content
// client, caches, feed views, handlers and middleware.
type App struct {
	Config    SiteConfig
	Echo      *echo.Echo
	Content   ContentSource
	Cache     *PageCache
	Snapshots *SnapshotStore
	Feeds     *feed.Registry
	OG        *og.Builder
	Theme     themes.Theme
	Views     themes.Views

	subscribeLimiter *IPLimiter
	customRoutes     []func(*App)
	staticDir        string
	httpClient       *http.Client
	viewsSet         bool
	stops            []func()
}

// New creates a new blogkit App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Setup initializes the theme, content client, snapshot store, caches,
// middleware and routes without starting the server.
func (a *App) Setup() error {
	if a.Config.PublicationHost == "" {
		return fmt.Errorf("blogkit: PublicationHost is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("blogkit: SessionSecret is required")
	}

	a.Echo.HideBanner = true
	a.Echo.Logger.SetLevel(parseLevel(a.Config.LogLevel))

	// Theme
	catalog := themes.Builtin()
	if a.Config.ThemesFile != "" {
		c, err := themes.LoadFile(a.Config.ThemesFile)
		if err != nil {
			return fmt.Errorf("blogkit: load themes: %w", err)
		}
		catalog = c
	}
	theme, err := catalog.Lookup(a.Config.Theme)
	if err != nil {
		return fmt.Errorf("blogkit: %w", err)
	}
	a.Theme = theme
	if !a.viewsSet {
		a.Views = themes.ViewsFor(theme)
	}

	// Content API client
	if a.Content == nil {
		opts := []content.ClientOption{
			content.WithRateLimit(rate.NewLimiter(rate.Limit(a.Config.APIRate), int(a.Config.APIRate)+1)),
			content.WithLogger(a.Echo.Logger),
		}
		if a.httpClient != nil {
			opts = append(opts, content.WithHTTPClient(a.httpClient))
		}
		a.Content = content.NewClient(a.Config.GQLEndpoint, opts...)
	}

	// Snapshot store and page cache
	snapshots, err := NewSnapshotStore(a.Config.SnapshotPath)
	if err != nil {
		return fmt.Errorf("blogkit: init snapshot store: %w", err)
	}
	a.Snapshots = snapshots
	a.Cache = NewPageCache(a.Content, a.Config.PublicationHost, theme.InitialPageSize, a.Config.PageCacheTTL)
	a.Cache.Snapshots = snapshots
	a.Cache.Logger = a.Echo.Logger

	// Feed views
	a.Feeds = feed.NewRegistry(a.Config.FeedIdleTTL, a.Config.FeedMaxViews)
	a.Feeds.SetLogger(a.Echo.Logger)
	a.stops = append(a.stops, a.Feeds.StartJanitor(a.Config.FeedIdleTTL/2))

	a.OG = og.NewBuilder(a.Config.PublicationHost, og.WithLogger(a.Echo.Logger))

	a.subscribeLimiter = NewIPLimiter(a.Config.SubscribeLimit, a.Config.SubscribeWindow)
	a.stops = append(a.stops, a.subscribeLimiter.Stop)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start runs Setup and starts the server.
func (a *App) Start() error {
	if err := a.Setup(); err != nil {
		return err
	}
	if err := a.Echo.Start(a.Config.Addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Embedded assets are served under /public/ and fall through to the
	// user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS))))
	e.GET("/public/feed.js", embeddedHandler)
	e.GET("/public/blogkit.css", embeddedHandler)
	e.GET("/public/default-cover.svg", embeddedHandler)
	e.Static("/public", a.staticDir)

	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/rss.xml", a.handleRSS)
	e.GET("/metrics", metricsHandler())

	e.GET("/api/og/post", a.handleOGPost)
	e.GET("/api/og/home", a.handleOGHome)

	e.POST("/newsletter/subscribe/", a.handleSubscribe)

	e.GET("/", a.handleHome)
	e.GET("/feed/:view/more", a.handleMore)
	e.GET("/:slug/", a.handlePost)
}

// Close stops background work and closes the snapshot store.
func (a *App) Close() error {
	for _, stop := range a.stops {
		stop()
	}
	a.stops = nil
	if a.Snapshots != nil {
		return a.Snapshots.Close()
	}
	return nil
}

func parseLevel(s string) glog.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return glog.DEBUG
	case "warn":
		return glog.WARN
	case "error":
		return glog.ERROR
	case "off":
		return glog.OFF
	default:
		return glog.INFO
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fatally exits if empty.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("blogkit: required environment variable %s is not set", key)
	}
	return v
}
