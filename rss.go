package blogkit

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eringen/blogkit/content"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Image       *rssImage `xml:"image,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Author      string `xml:"author,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	GUID        string `xml:"guid"`
}

func (a *App) renderRSS(c echo.Context, pub *content.Publication) error {
	base := a.Config.URL
	title := firstNonEmpty(pub.DisplayTitle, pub.Title, a.Config.DefaultTitle)
	items := make([]rssItem, 0, len(pub.Posts.Posts))
	for _, p := range pub.Posts.Posts {
		pubDate := ""
		if !p.PublishedAt.IsZero() {
			pubDate = p.PublishedAt.UTC().Format(time.RFC1123Z)
		}
		postURL := BuildURL(base, p.Slug)
		items = append(items, rssItem{
			Title:       p.Title,
			Link:        postURL,
			Description: p.Brief,
			Author:      p.Author.Name,
			PubDate:     pubDate,
			GUID:        postURL,
		})
	}
	channel := rssChannel{
		Title:       title,
		Link:        BuildURL(base),
		Description: firstNonEmpty(pub.DescriptionSEO, title),
		Items:       items,
	}
	if pub.Logo != "" {
		channel.Image = &rssImage{URL: pub.Logo, Title: title, Link: BuildURL(base)}
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(rssXML{Version: "2.0", Channel: channel})
}
