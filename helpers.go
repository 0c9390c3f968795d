package blogkit

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/og"
	"github.com/eringen/blogkit/themes"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// PublicationJsonLD returns a JSON-LD string for a Blog schema.
func PublicationJsonLD(pub *content.Publication, cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "Blog",
		"name":        firstNonEmpty(pub.DisplayTitle, pub.Title, cfg.DefaultTitle),
		"url":         BuildURL(cfg.URL),
		"description": pub.DescriptionSEO,
	}
	if pub.Author.Name != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  pub.Author.Name,
		}
	}
	if pub.Logo != "" {
		data["image"] = pub.Logo
	}
	return marshalJSONLD(data)
}

// BlogPostingJsonLD returns a JSON-LD string for a BlogPosting schema.
func BlogPostingJsonLD(post *content.Post, pub *content.Publication, cfg SiteConfig) string {
	postURL := BuildURL(cfg.URL, post.Slug)
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "BlogPosting",
		"headline":    post.Title,
		"description": firstNonEmpty(post.SEODescription, post.Brief),
		"url":         postURL,
		"image":       post.CoverImage(),
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   postURL,
		},
	}
	if !post.PublishedAt.IsZero() {
		data["datePublished"] = post.PublishedAt.UTC().Format(time.RFC3339)
	}
	if post.Author.Name != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  post.Author.Name,
		}
	}
	if pub != nil {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  firstNonEmpty(pub.DisplayTitle, pub.Title, cfg.DefaultTitle),
		}
	}
	if len(post.Tags) > 0 {
		names := make([]string, len(post.Tags))
		for i, t := range post.Tags {
			names[i] = t.Name
		}
		data["keywords"] = strings.Join(names, ", ")
	}
	return marshalJSONLD(data)
}

func marshalJSONLD(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// homeMeta builds the <head> metadata of the home page.
func (a *App) homeMeta(pub *content.Publication) themes.PageMeta {
	image := pub.OGImage
	if image == "" {
		image = a.ogURL("publication", a.OG.BuildPublication(og.PublicationInputFrom(*pub)))
	}
	return themes.PageMeta{
		Title:       firstNonEmpty(pub.DisplayTitle, pub.Title, a.Config.DefaultTitle),
		Description: firstNonEmpty(pub.DescriptionSEO, pub.Title, pub.Author.Name+"'s Blog"),
		URL:         BuildURL(a.Config.URL),
		OGType:      "website",
		Image:       image,
		Favicon:     pub.Favicon,
	}
}

// postMeta builds the <head> metadata of a post page.
func (a *App) postMeta(pub *content.Publication, post *content.Post) themes.PageMeta {
	image := post.OGImage
	if image == "" {
		image = a.ogURL("post", a.OG.BuildPost(og.PostInputFrom(post.PostSummary)))
	}
	meta := themes.PageMeta{
		Title:       firstNonEmpty(post.SEOTitle, post.Title),
		Description: firstNonEmpty(post.SEODescription, post.Brief),
		URL:         BuildURL(a.Config.URL, post.Slug),
		OGType:      "article",
		Image:       image,
	}
	if pub != nil {
		meta.Favicon = pub.Favicon
	}
	return meta
}

func (a *App) ogURL(kind string, res og.Result) string {
	result := "ok"
	if res.Partial {
		result = "partial"
	}
	ogBuilds.WithLabelValues(kind, result).Inc()
	return res.URL
}
