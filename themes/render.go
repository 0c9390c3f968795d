package themes

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/blogkit/content"
)

// writer accumulates the first write error so page code can stay linear.
type writer struct {
	w   io.Writer
	err error
}

func (h *writer) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *writer) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *writer) attr(name, value string) {
	h.raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

func component(fn func(h *writer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &writer{w: w}
		fn(h)
		return h.err
	})
}

// PostPath returns the site path of a post.
func PostPath(slug string) string {
	return "/" + url.PathEscape(slug) + "/"
}

// NewView is the view segment of a "load more" path that has no open view
// yet. The server opens one from the cursor.
const NewView = "new"

// MorePath returns the "load more" endpoint of a feed view, carrying the
// cursor so the server can reopen a view it no longer holds.
func MorePath(viewID, after string) string {
	if viewID == "" {
		viewID = NewView
	}
	return "/feed/" + url.PathEscape(viewID) + "/more?after=" + url.QueryEscape(after)
}

func layout(h *writer, t Theme, meta PageMeta, jsonLD string, body func()) {
	h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
	h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	h.raw("<title>")
	h.text(meta.Title)
	h.raw("</title>")
	metaTag(h, "name", "description", meta.Description)
	if meta.URL != "" {
		h.raw(`<link rel="canonical"`)
		h.attr("href", meta.URL)
		h.raw(">")
		metaTag(h, "property", "og:url", meta.URL)
	}
	metaTag(h, "property", "og:title", meta.Title)
	metaTag(h, "property", "og:description", meta.Description)
	metaTag(h, "property", "og:type", meta.OGType)
	metaTag(h, "property", "og:image", meta.Image)
	metaTag(h, "property", "twitter:card", "summary_large_image")
	metaTag(h, "property", "twitter:title", meta.Title)
	metaTag(h, "property", "twitter:description", meta.Description)
	metaTag(h, "property", "twitter:image", meta.Image)
	if meta.Favicon != "" {
		h.raw(`<link rel="icon"`)
		h.attr("href", meta.Favicon)
		h.raw(">")
	}
	if jsonLD != "" {
		// JSON-LD comes from encoding/json, which escapes '<' and '>'.
		h.raw(`<script type="application/ld+json">`, jsonLD, `</script>`)
	}
	h.raw(`<link rel="stylesheet" href="/public/blogkit.css">`)
	h.raw(`<script src="/public/feed.js" defer></script>`)
	h.raw(`</head><body`)
	h.attr("class", "theme-"+t.Name)
	h.raw(">")
	body()
	h.raw("</body></html>")
}

func metaTag(h *writer, key, name, value string) {
	if value == "" {
		return
	}
	h.raw("<meta")
	h.attr(key, name)
	h.attr("content", value)
	h.raw(">")
}

func postCard(h *writer, p content.PostSummary, class string) {
	h.raw("<article")
	h.attr("class", class)
	h.attr("data-post-id", p.ID)
	h.raw("><a")
	h.attr("href", PostPath(p.Slug))
	h.raw("><img")
	h.attr("src", p.CoverImage())
	h.raw(` alt="" loading="lazy"><h2>`)
	h.text(p.Title)
	h.raw("</h2></a>")
	if p.Brief != "" {
		h.raw("<p>")
		h.text(p.Brief)
		h.raw("</p>")
	}
	h.raw(`<footer><span class="author">`)
	h.text(p.Author.Name)
	h.raw("</span>")
	if !p.PublishedAt.IsZero() {
		h.raw("<time")
		h.attr("datetime", p.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
		h.raw(">")
		h.text(FormatDate(p))
		h.raw("</time>")
	}
	h.raw("</footer></article>")
}

// FormatDate formats the publish date the way cards show it.
func FormatDate(p content.PostSummary) string {
	return p.PublishedAt.Format("Jan 2, 2006")
}

func feedControl(h *writer, t Theme, viewID string, info content.PageInfo, loadedMore bool) {
	h.raw(`<div id="feed-control">`)
	switch {
	case info.CanAdvance() && loadedMore && t.AutoLoad:
		h.raw("<div data-feed-waypoint")
		h.attr("data-src", MorePath(viewID, info.EndCursor))
		h.raw("></div>")
	case info.CanAdvance():
		h.raw(`<button type="button" data-feed-more`)
		h.attr("data-src", MorePath(viewID, info.EndCursor))
		h.raw(">")
		h.text(t.LoadMoreLabel)
		h.raw("</button>")
	case t.EndMessage != "":
		h.raw(`<p class="feed-end">`)
		h.text(t.EndMessage)
		h.raw("</p>")
	}
	h.raw("</div>")
}

func header(h *writer, pub content.Publication) {
	h.raw(`<header class="site-header"><a href="/">`)
	if pub.Logo != "" {
		h.raw("<img")
		h.attr("src", pub.Logo)
		h.attr("alt", displayTitle(pub))
		h.raw(">")
	} else {
		h.text(displayTitle(pub))
	}
	h.raw("</a></header>")
}

func displayTitle(pub content.Publication) string {
	if pub.DisplayTitle != "" {
		return pub.DisplayTitle
	}
	return pub.Title
}

// Home renders the publication home page.
func Home(d HomeData) templ.Component {
	return component(func(h *writer) {
		layout(h, d.Theme, d.Meta, d.JSONLD, func() {
			header(h, d.Publication)
			h.raw("<main>")
			items := d.Feed.Items
			if len(items) == 0 {
				h.raw(`<p class="empty">Hang tight! We&#39;re drafting the first article.</p>`)
			}
			hero, secondary, rest := d.Theme.Split(items)
			if len(hero) > 0 {
				h.raw(`<section class="hero">`)
				for _, p := range hero {
					postCard(h, p, "post-card hero-post")
				}
				h.raw("</section>")
			}
			if len(secondary) > 0 {
				h.raw(`<section class="secondary">`)
				for _, p := range secondary {
					postCard(h, p, "post-card secondary-post")
				}
				h.raw("</section>")
			}
			if len(items) > 0 {
				subscribeForm(h, d)
			}
			if len(rest) > 0 {
				h.raw(`<section id="more-posts">`)
				for _, p := range rest {
					postCard(h, p, "post-card")
				}
				h.raw("</section>")
				feedControl(h, d.Theme, "", d.Feed.PageInfo, d.Feed.LoadedMore)
			}
			h.raw("</main>")
			footer(h, d.Publication)
		})
	})
}

func subscribeForm(h *writer, d HomeData) {
	h.raw(`<section class="newsletter">`)
	if d.Notice != "" {
		h.raw(`<p class="notice">`)
		h.text(d.Notice)
		h.raw("</p>")
	}
	if !d.Subscribed {
		h.raw(`<form method="post" action="/newsletter/subscribe/"><input type="hidden" name="_csrf"`)
		h.attr("value", d.CSRFToken)
		h.raw(`><input type="email" name="email" placeholder="you@example.com" required><button type="submit">Subscribe</button></form>`)
	}
	h.raw("</section>")
}

func footer(h *writer, pub content.Publication) {
	h.raw(`<footer class="site-footer"><p>&copy; `)
	h.text(displayTitle(pub))
	h.raw(`</p><a href="/rss.xml">RSS</a></footer>`)
}

// MorePosts renders the fragment answering a "load more" request.
func MorePosts(d MoreData) templ.Component {
	return component(func(h *writer) {
		h.raw("<div data-feed-items>")
		for _, p := range d.Posts {
			postCard(h, p, "post-card")
		}
		h.raw("</div>")
		feedControl(h, d.Theme, d.ViewID, d.PageInfo, d.LoadedMore)
	})
}

// PostPage renders a single post.
func PostPage(d PostData) templ.Component {
	return component(func(h *writer) {
		layout(h, d.Theme, d.Meta, d.JSONLD, func() {
			header(h, d.Publication)
			p := d.Post
			h.raw(`<main><article class="post"><h1>`)
			h.text(p.Title)
			h.raw("</h1><img")
			h.attr("src", p.CoverImage())
			h.raw(` alt=""><p class="byline">`)
			if p.Author.ProfilePicture != "" {
				h.raw("<img")
				h.attr("src", p.Author.ProfilePicture)
				h.raw(` alt="" class="avatar">`)
			}
			h.text(p.Author.Name)
			if !p.PublishedAt.IsZero() {
				h.raw(" &middot; ")
				h.text(FormatDate(p.PostSummary))
			}
			if p.ReadTimeInMinutes > 0 {
				h.raw(" &middot; ")
				h.text(strconv.Itoa(p.ReadTimeInMinutes) + " min read")
			}
			h.raw(`</p><div class="post-content">`)
			// Post HTML is rendered by the content API.
			h.raw(p.ContentHTML)
			h.raw("</div>")
			if len(p.Tags) > 0 {
				h.raw(`<ul class="tags">`)
				for _, tag := range p.Tags {
					h.raw("<li>#")
					h.text(tag.Name)
					h.raw("</li>")
				}
				h.raw("</ul>")
			}
			h.raw("</article></main>")
			footer(h, d.Publication)
		})
	})
}

// NotFound renders the 404 page.
func NotFound(t Theme) templ.Component {
	return component(func(h *writer) {
		layout(h, t, PageMeta{Title: "Not found"}, "", func() {
			h.raw(`<main class="error"><h1>404</h1><p>This page could not be found.</p><a href="/">Back home</a></main>`)
		})
	})
}

// ServerError renders the 500 page.
func ServerError(t Theme) templ.Component {
	return component(func(h *writer) {
		layout(h, t, PageMeta{Title: "Something went wrong"}, "", func() {
			h.raw(`<main class="error"><h1>500</h1><p>Something went wrong. Please try again.</p><a href="/">Back home</a></main>`)
		})
	})
}
