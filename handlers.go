package blogkit

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/feed"
	"github.com/eringen/blogkit/themes"
)

// maxCursorLen bounds the cursor a client may hand back.
const maxCursorLen = 512

// pageFetcher loads the pages after the first from the content API.
func (a *App) pageFetcher() feed.PageFetcher {
	return feed.FetcherFunc(func(ctx context.Context, first int, after string) (*content.PostPage, error) {
		return a.Content.MorePosts(ctx, a.Config.PublicationHost, first, after)
	})
}

func (a *App) newAggregator() *feed.Aggregator {
	return feed.New(a.pageFetcher(), a.Theme.PageSize, feed.WithOverlapPolicy(a.Config.OverlapPolicy))
}

// seedView builds the aggregator of a view the server does not hold. When
// after is the cursor of the cached first page the view starts from that
// page, otherwise it starts empty at after.
func (a *App) seedView(ctx context.Context, after string) *feed.Aggregator {
	agg := a.newAggregator()
	if pub, err := a.Cache.Home(ctx); err == nil && pub.Posts.PageInfo.EndCursor == after {
		agg.Initialize(pub.Posts.Posts, pub.Posts.PageInfo)
		return agg
	}
	agg.Initialize(nil, content.PageInfo{HasNextPage: true, EndCursor: after})
	return agg
}

func (a *App) handleHome(c echo.Context) error {
	pub, err := a.Cache.Home(c.Request().Context())
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}

	// The view is opened by the first "load more" request.
	agg := a.newAggregator()
	agg.Initialize(pub.Posts.Posts, pub.Posts.PageInfo)

	return Render(c, a.Views.Home(themes.HomeData{
		Meta:        a.homeMeta(pub),
		JSONLD:      PublicationJsonLD(pub, a.Config),
		Publication: *pub,
		Theme:       a.Theme,
		Feed:        agg.Snapshot(),
		CSRFToken:   CsrfToken(c),
		Subscribed:  IsSubscribed(c),
		Notice:      takeNotice(c),
	}))
}

// handleMore appends the next page to a feed view and answers with the new
// cards and the control that replaces the old one. A view the registry does
// not hold (new, swept or evicted) is opened from the "after" cursor.
func (a *App) handleMore(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("view")
	agg, ok := a.Feeds.Get(id)
	if !ok {
		after := c.QueryParam("after")
		if after == "" || len(after) > maxCursorLen {
			return c.NoContent(http.StatusNotFound)
		}
		agg = a.seedView(ctx, after)
		id = a.Feeds.Open(agg)
	}

	res, err := agg.LoadNextPage(ctx)
	feedLoads.WithLabelValues(res.Status.String()).Inc()
	switch res.Status {
	case feed.StatusNotFound, feed.StatusBusy:
		if !ok && res.Status == feed.StatusNotFound {
			a.Feeds.Close(id)
		}
		return c.NoContent(http.StatusNoContent)
	case feed.StatusFailed:
		c.Logger().Warnf("feed %s: load next page: %v", id, err)
		if !ok {
			a.Feeds.Close(id)
		}
		return c.NoContent(http.StatusBadGateway)
	}

	state := agg.Snapshot()
	return Render(c, a.Views.MorePosts(themes.MoreData{
		Theme:      a.Theme,
		ViewID:     id,
		Posts:      state.Items[res.Offset : res.Offset+res.Added],
		PageInfo:   state.PageInfo,
		LoadedMore: state.LoadedMore,
	}))
}

func (a *App) handlePost(c echo.Context) error {
	slug := c.Param("slug")
	pub, post, err := a.Cache.Post(c.Request().Context(), slug)
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}
	data := themes.PostData{
		Meta:   a.postMeta(pub, post),
		JSONLD: BlogPostingJsonLD(post, pub, a.Config),
		Post:   *post,
		Theme:  a.Theme,
	}
	if pub != nil {
		data.Publication = *pub
	}
	return Render(c, a.Views.Post(data))
}

func (a *App) handleSitemap(c echo.Context) error {
	pub, err := a.Cache.Home(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, pub.Posts.Posts)
}

func (a *App) handleRSS(c echo.Context) error {
	pub, err := a.Cache.Home(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, pub)
}

func (a *App) handleRobots(c echo.Context) error {
	body := "User-agent: *\nAllow: /\nSitemap: " + a.Config.URL + "/sitemap.xml\n"
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if errors.Is(err, ErrNotFound) {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
