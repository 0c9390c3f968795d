package blogkit

import (
	"net/http"
	"time"

	"github.com/eringen/blogkit/feed"
	"github.com/eringen/blogkit/themes"
)

// SiteConfig holds all configuration for a blogkit site.
type SiteConfig struct {
	PublicationHost string // Required: publication host, e.g. "blog.example.com"
	GQLEndpoint     string // Content API endpoint (default "https://gql.hashnode.com")
	URL             string // Canonical URL (default "https://" + PublicationHost)
	DefaultTitle    string // Title used when the publication has none (default "Blog")

	Theme      string // Theme name (default "enterprise")
	ThemesFile string // Optional YAML file with theme overrides

	Addr         string // Listen address (default ":3000")
	SnapshotPath string // SQLite path of the snapshot store (default "data/snapshots.db")

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	OverlapPolicy feed.OverlapPolicy // What a second concurrent "load more" does (default reject)
	APIRate       float64            // Content API requests per second (default 10)

	PageCacheTTL    time.Duration // Home and post cache TTL (default 60s)
	FeedIdleTTL     time.Duration // Idle feed views are dropped after this (default 30min)
	FeedMaxViews    int           // Open feed views kept at most; the least recently used goes first (default 10000)
	SubscribeLimit  int           // Newsletter requests per IP per window (default 5)
	SubscribeWindow time.Duration // (default 1min)

	LogLevel string // debug, info, warn or error (default info)
}

func (c *SiteConfig) setDefaults() {
	if c.GQLEndpoint == "" {
		c.GQLEndpoint = "https://gql.hashnode.com"
	}
	if c.URL == "" && c.PublicationHost != "" {
		c.URL = "https://" + c.PublicationHost
	}
	if c.DefaultTitle == "" {
		c.DefaultTitle = "Blog"
	}
	if c.Theme == "" {
		c.Theme = "enterprise"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.SnapshotPath == "" {
		c.SnapshotPath = "data/snapshots.db"
	}
	if c.APIRate <= 0 {
		c.APIRate = 10
	}
	if c.PageCacheTTL == 0 {
		c.PageCacheTTL = 60 * time.Second
	}
	if c.FeedIdleTTL == 0 {
		c.FeedIdleTTL = 30 * time.Minute
	}
	if c.FeedMaxViews == 0 {
		c.FeedMaxViews = 10000
	}
	if c.SubscribeLimit == 0 {
		c.SubscribeLimit = 5
	}
	if c.SubscribeWindow == 0 {
		c.SubscribeWindow = time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithViews replaces the theme's default components.
func WithViews(v themes.Views) Option {
	return func(a *App) {
		a.Views = v
		a.viewsSet = true
	}
}

// WithHTTPClient sets the HTTP client used to reach the content API.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithContentSource replaces the content API client.
func WithContentSource(src ContentSource) Option {
	return func(a *App) {
		a.Content = src
	}
}
