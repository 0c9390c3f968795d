package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/eringen/blogkit"
	"github.com/eringen/blogkit/feed"
)

func configFromEnv() (blogkit.SiteConfig, error) {
	policy, err := feed.ParseOverlapPolicy(os.Getenv("FEED_OVERLAP_POLICY"))
	if err != nil {
		return blogkit.SiteConfig{}, err
	}
	var rps float64
	if v := os.Getenv("API_RPS"); v != "" {
		rps, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return blogkit.SiteConfig{}, fmt.Errorf("API_RPS: %w", err)
		}
	}
	var maxViews int
	if v := os.Getenv("FEED_MAX_VIEWS"); v != "" {
		maxViews, err = strconv.Atoi(v)
		if err != nil {
			return blogkit.SiteConfig{}, fmt.Errorf("FEED_MAX_VIEWS: %w", err)
		}
	}
	return blogkit.SiteConfig{
		PublicationHost: blogkit.MustEnv("PUBLICATION_HOST"),
		GQLEndpoint:     os.Getenv("GQL_ENDPOINT"),
		URL:             os.Getenv("SITE_URL"),
		DefaultTitle:    os.Getenv("DEFAULT_TITLE"),
		Theme:           blogkit.EnvOr("THEME", "enterprise"),
		ThemesFile:      os.Getenv("THEMES_FILE"),
		Addr:            blogkit.EnvOr("SITE_ADDR", ":3000"),
		SnapshotPath:    blogkit.EnvOr("SNAPSHOT_DB", "data/snapshots.db"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		CookieSecure:    os.Getenv("COOKIE_SECURE") == "true",
		OverlapPolicy:   policy,
		APIRate:         rps,
		FeedMaxViews:    maxViews,
		LogLevel:        os.Getenv("LOG_LEVEL"),
	}, nil
}

func runServe() error {
	cfg, err := configFromEnv()
	if err != nil {
		return err
	}
	app := blogkit.New(cfg)
	defer app.Close()

	errc := make(chan error, 1)
	go func() { errc <- app.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Echo.Shutdown(ctx)
}
