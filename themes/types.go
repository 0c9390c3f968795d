package themes

import (
	"github.com/a-h/templ"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/feed"
)

// PageMeta carries per-page OpenGraph and SEO metadata into the <head>.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
	Image       string // og:image + twitter:image
	Favicon     string
}

// HomeData is everything the home page renders.
type HomeData struct {
	Meta        PageMeta
	JSONLD      string
	Publication content.Publication
	Theme       Theme
	Feed        feed.State
	CSRFToken   string
	Subscribed  bool
	Notice      string
}

// MoreData is the fragment returned for a "load more" request: the posts
// appended by the load and the control that replaces the old one.
type MoreData struct {
	Theme      Theme
	ViewID     string
	Posts      []content.PostSummary
	PageInfo   content.PageInfo
	LoadedMore bool
}

// PostData is everything a post page renders.
type PostData struct {
	Meta        PageMeta
	JSONLD      string
	Publication content.Publication
	Post        content.Post
	Theme       Theme
}

// Views holds the components the application renders. Replace any of them
// to customize a theme.
type Views struct {
	Home        func(HomeData) templ.Component
	MorePosts   func(MoreData) templ.Component
	Post        func(PostData) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// ViewsFor returns the default components for a theme.
func ViewsFor(t Theme) Views {
	return Views{
		Home:        Home,
		MorePosts:   MorePosts,
		Post:        PostPage,
		NotFound:    func() templ.Component { return NotFound(t) },
		ServerError: func() templ.Component { return ServerError(t) },
	}
}
