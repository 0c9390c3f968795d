package blogkit

import "embed"

// EmbeddedAssets contains static assets shipped with blogkit:
// feed.js (load more and infinite scroll), blogkit.css and default-cover.svg.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
