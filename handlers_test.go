package blogkit

import (
	"bytes"
	"html"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/og"
)

var moreSrcPattern = regexp.MustCompile(`data-src="(/feed/([^/"]+)/more[^"]*)"`)

func do(t *testing.T, a *App, method, target string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	return rec
}

// moreSrc returns the "load more" URL of the feed control in body and the
// view it names.
func moreSrc(t *testing.T, body string) (src, view string) {
	t.Helper()
	m := moreSrcPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no feed control in body")
	}
	return html.UnescapeString(m[1]), m[2]
}

func TestHomeRendersFirstPage(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "enterprise")

	rec := do(t, a, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if got := strings.Count(body, "<article"); got != 10 {
		t.Errorf("cards = %d, want 10", got)
	}
	for _, want := range []string{
		"<title>Example Blog</title>",
		`content="Notes on things"`,
		"https://blog.example.com/api/og/home?og=",
		`id="more-posts"`,
		"data-feed-more",
		"Load more posts",
		`application/ld+json`,
		`name="_csrf"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "data-feed-waypoint") {
		t.Errorf("waypoint shown before the first load")
	}
	if src, _ := moreSrc(t, body); src != "/feed/new/more?after=c10" {
		t.Errorf("load more src = %q", src)
	}
	if a.Feeds.Len() != 0 {
		t.Errorf("open views = %d, want 0 before any load", a.Feeds.Len())
	}
}

func TestHomeKeepsNoViewPerVisit(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "enterprise")

	for i := 0; i < 500; i++ {
		if rec := do(t, a, http.MethodGet, "/", nil, nil); rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	}
	if a.Feeds.Len() != 0 {
		t.Errorf("open views after 500 home visits = %d, want 0", a.Feeds.Len())
	}
}

func TestHomeOpensNoViewWithoutMorePosts(t *testing.T) {
	src := newFakeSource(3)
	a := setupTestApp(t, src, "enterprise")

	rec := do(t, a, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `id="feed-control"`) {
		t.Errorf("feed control rendered without remaining posts")
	}
	if a.Feeds.Len() != 0 {
		t.Errorf("open views = %d, want 0", a.Feeds.Len())
	}
}

func TestHomeUsesPublicationOGImage(t *testing.T) {
	src := newFakeSource(3)
	src.pub.OGImage = "https://cdn.example.com/og.png"
	src.pub.DisplayTitle = "Display"
	a := setupTestApp(t, src, "magazine")

	body := do(t, a, http.MethodGet, "/", nil, nil).Body.String()
	if !strings.Contains(body, `property="og:image" content="https://cdn.example.com/og.png"`) {
		t.Errorf("publication og image not used")
	}
	if !strings.Contains(body, "<title>Display</title>") {
		t.Errorf("display title not used")
	}
}

func TestHomeNotFound(t *testing.T) {
	src := newFakeSource(3)
	src.setErr(content.ErrNotFound)
	a := setupTestApp(t, src, "enterprise")

	rec := do(t, a, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHomeUpstreamError(t *testing.T) {
	src := newFakeSource(3)
	src.setErr(errUpstream)
	a := setupTestApp(t, src, "enterprise")

	rec := do(t, a, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Something went wrong") {
		t.Errorf("server error page not rendered")
	}
}

func TestLoadMoreAppendsPages(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "enterprise")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())

	rec := do(t, a, http.MethodGet, next, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if got := strings.Count(body, "<article"); got != 10 {
		t.Errorf("appended cards = %d, want 10", got)
	}
	if !strings.Contains(body, `data-post-id="p10"`) || !strings.Contains(body, `data-post-id="p19"`) {
		t.Errorf("fragment does not hold posts p10..p19")
	}
	if !strings.Contains(body, "data-feed-waypoint") {
		t.Errorf("enterprise theme should switch to the waypoint after a load")
	}
	next, id := moreSrc(t, body)
	if id == "new" || next != "/feed/"+id+"/more?after=c20" {
		t.Errorf("next src = %q", next)
	}

	rec = do(t, a, http.MethodGet, next, nil, nil)
	body = rec.Body.String()
	if got := strings.Count(body, "<article"); got != 5 {
		t.Errorf("appended cards = %d, want 5", got)
	}
	if strings.Contains(body, "data-feed-waypoint") || strings.Contains(body, "data-feed-more") {
		t.Errorf("control offered after the last page")
	}

	src.mu.Lock()
	cursors := append([]string(nil), src.moreCalls...)
	src.mu.Unlock()
	if len(cursors) != 2 || cursors[0] != "c10" || cursors[1] != "c20" {
		t.Errorf("cursors = %v, want [c10 c20]", cursors)
	}

	if a.Feeds.Len() != 1 {
		t.Errorf("open views = %d, want 1", a.Feeds.Len())
	}
	agg, ok := a.Feeds.Get(id)
	if !ok {
		t.Fatalf("view %s was dropped", id)
	}
	items := agg.Items()
	if len(items) != 25 {
		t.Fatalf("items = %d, want 25", len(items))
	}
	for i, p := range items {
		if p.ID != src.posts[i].ID {
			t.Errorf("items[%d] = %s, want %s", i, p.ID, src.posts[i].ID)
		}
	}
}

func TestLoadMoreDocumentationTheme(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "documentation")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())

	body := do(t, a, http.MethodGet, next, nil, nil).Body.String()
	if got := strings.Count(body, "<article"); got != 9 {
		t.Errorf("appended cards = %d, want 9", got)
	}
	if !strings.Contains(body, "data-feed-more") {
		t.Errorf("documentation theme should keep the button")
	}

	next, _ = moreSrc(t, body)
	body = do(t, a, http.MethodGet, next, nil, nil).Body.String()
	if !strings.Contains(body, "That&#39;s all Folks!") {
		t.Errorf("end message missing: %s", body)
	}
}

func TestLoadMoreReopensSweptView(t *testing.T) {
	src := newFakeSource(35)
	a := setupTestApp(t, src, "enterprise")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())
	next, id := moreSrc(t, do(t, a, http.MethodGet, next, nil, nil).Body.String())

	if n := a.Feeds.Sweep(time.Now().Add(time.Hour)); n != 1 {
		t.Fatalf("swept %d views, want 1", n)
	}
	if _, ok := a.Feeds.Get(id); ok {
		t.Fatalf("view %s still open after sweep", id)
	}

	rec := do(t, a, http.MethodGet, next, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `data-post-id="p20"`) || !strings.Contains(body, `data-post-id="p29"`) {
		t.Errorf("reopened view did not continue at p20")
	}
	after, newID := moreSrc(t, body)
	if newID == id || after != "/feed/"+newID+"/more?after=c30" {
		t.Errorf("next src = %q", after)
	}
	if a.Feeds.Len() != 1 {
		t.Errorf("open views = %d, want 1", a.Feeds.Len())
	}
}

func TestLoadMoreNotFoundIsNoOp(t *testing.T) {
	src := newFakeSource(35)
	a := setupTestApp(t, src, "enterprise")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())
	next, id := moreSrc(t, do(t, a, http.MethodGet, next, nil, nil).Body.String())
	src.setErr(content.ErrNotFound)

	rec := do(t, a, http.MethodGet, next, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	agg, ok := a.Feeds.Get(id)
	if !ok {
		t.Fatalf("view %s was dropped", id)
	}
	if len(agg.Items()) != 20 || agg.PageInfo().EndCursor != "c20" {
		t.Errorf("state changed on not found: %d items, cursor %q", len(agg.Items()), agg.PageInfo().EndCursor)
	}
}

func TestLoadMoreUpstreamError(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "enterprise")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())
	src.setErr(errUpstream)

	rec := do(t, a, http.MethodGet, next, nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if a.Feeds.Len() != 0 {
		t.Errorf("open views = %d, want 0 after a failed first load", a.Feeds.Len())
	}

	src.setErr(nil)
	if rec := do(t, a, http.MethodGet, next, nil, nil); rec.Code != http.StatusOK {
		t.Errorf("retry status = %d, want 200", rec.Code)
	}
}

func TestLoadMoreUnknownView(t *testing.T) {
	a := setupTestApp(t, newFakeSource(25), "enterprise")

	rec := do(t, a, http.MethodGet, "/feed/does-not-exist/more", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	rec = do(t, a, http.MethodGet, "/feed/new/more?after="+strings.Repeat("x", maxCursorLen+1), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("oversized cursor status = %d, want 404", rec.Code)
	}
}

func TestPostPage(t *testing.T) {
	src := newFakeSource(3)
	a := setupTestApp(t, src, "enterprise")

	rec := do(t, a, http.MethodGet, "/post-1/", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<p>Body p1</p>",
		"https://blog.example.com/api/og/post?og=",
		`"@type":"BlogPosting"`,
		`href="https://blog.example.com/post-1/"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestPostPageNotFound(t *testing.T) {
	a := setupTestApp(t, newFakeSource(3), "enterprise")

	rec := do(t, a, http.MethodGet, "/missing/", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "404") {
		t.Errorf("not found page not rendered")
	}
}

func TestRSSFeed(t *testing.T) {
	a := setupTestApp(t, newFakeSource(12), "enterprise")

	rec := do(t, a, http.MethodGet, "/rss.xml", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Errorf("Content-Type = %q", ct)
	}
	parsed, err := gofeed.NewParser().ParseString(rec.Body.String())
	if err != nil {
		t.Fatalf("parse rss: %v", err)
	}
	if parsed.Title != "Example Blog" {
		t.Errorf("Title = %q, want %q", parsed.Title, "Example Blog")
	}
	if len(parsed.Items) != 10 {
		t.Fatalf("items = %d, want 10", len(parsed.Items))
	}
	if parsed.Items[0].Link != "https://blog.example.com/post-0/" {
		t.Errorf("Link = %q", parsed.Items[0].Link)
	}
	if parsed.Items[0].PublishedParsed == nil {
		t.Errorf("pubDate not parsed")
	}
}

func TestSitemapAndRobots(t *testing.T) {
	a := setupTestApp(t, newFakeSource(2), "enterprise")

	body := do(t, a, http.MethodGet, "/sitemap.xml", nil, nil).Body.String()
	for _, want := range []string{
		"<loc>https://blog.example.com</loc>",
		"<loc>https://blog.example.com/post-1/</loc>",
		"<lastmod>2024-01-29</lastmod>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("sitemap missing %q", want)
		}
	}

	body = do(t, a, http.MethodGet, "/robots.txt", nil, nil).Body.String()
	if !strings.Contains(body, "Sitemap: https://blog.example.com/sitemap.xml") {
		t.Errorf("robots.txt = %q", body)
	}
}

func TestOGImageEndpoints(t *testing.T) {
	src := newFakeSource(3)
	a := setupTestApp(t, src, "enterprise")

	post := a.OG.BuildPost(og.PostInputFrom(src.posts[0]))
	home := a.OG.BuildPublication(og.PublicationInputFrom(src.pub))
	for _, target := range []string{
		"/api/og/post?og=" + post.Payload,
		"/api/og/home?og=" + home.Payload,
	} {
		rec := do(t, a, http.MethodGet, target, nil, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", target, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: Content-Type = %q", target, ct)
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
		if err != nil {
			t.Fatalf("%s: decode png: %v", target, err)
		}
		if cfg.Width != 1200 || cfg.Height != 630 {
			t.Errorf("%s: size = %dx%d, want 1200x630", target, cfg.Width, cfg.Height)
		}
	}

	rec := do(t, a, http.MethodGet, "/api/og/post?og=%25%25%25", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("garbage payload status = %d, want 400", rec.Code)
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("the quick brown fox jumps over the lazy dog", 10, 2)
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want 2 lines", lines)
	}
	if lines[0] != "the quick" {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "...") {
		t.Errorf("truncated line %q should end with ...", lines[1])
	}
	if got := wrapText("short", 10, 2); len(got) != 1 || got[0] != "short" {
		t.Errorf("wrapText(short) = %q", got)
	}
}

func csrfCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "_csrf" {
			return c
		}
	}
	t.Fatalf("no _csrf cookie")
	return nil
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSubscribeFlow(t *testing.T) {
	src := newFakeSource(3)
	src.subStatus = "CONFIRMED"
	a := setupTestApp(t, src, "enterprise")

	csrf := csrfCookie(t, do(t, a, http.MethodGet, "/", nil, nil))

	form := url.Values{"email": {"reader@example.com"}, "_csrf": {csrf.Value}}
	rec := do(t, a, http.MethodPost, "/newsletter/subscribe/", form, []*http.Cookie{csrf})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	sess := cookieNamed(rec, sessionName)
	if sess == nil {
		t.Fatalf("no session cookie after subscribing")
	}
	if len(src.subscribes) != 1 || src.subscribes[0] != (subscribeCall{"pub1", "reader@example.com"}) {
		t.Errorf("subscribes = %+v", src.subscribes)
	}

	body := do(t, a, http.MethodGet, "/", nil, []*http.Cookie{csrf, sess}).Body.String()
	if !strings.Contains(body, "You&#39;re subscribed.") {
		t.Errorf("notice missing after subscribing")
	}
	if strings.Contains(body, `action="/newsletter/subscribe/"`) {
		t.Errorf("form still shown to a subscriber")
	}
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	src := newFakeSource(3)
	a := setupTestApp(t, src, "enterprise")

	csrf := csrfCookie(t, do(t, a, http.MethodGet, "/", nil, nil))
	form := url.Values{"email": {"not-an-email"}, "_csrf": {csrf.Value}}
	rec := do(t, a, http.MethodPost, "/newsletter/subscribe/", form, []*http.Cookie{csrf})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if len(src.subscribes) != 0 {
		t.Errorf("subscribe called for an invalid email")
	}
	sess := cookieNamed(rec, sessionName)
	body := do(t, a, http.MethodGet, "/", nil, []*http.Cookie{csrf, sess}).Body.String()
	if !strings.Contains(body, "Please enter a valid email address.") {
		t.Errorf("invalid email notice missing")
	}
}

func TestSubscribeRequiresCSRF(t *testing.T) {
	a := setupTestApp(t, newFakeSource(3), "enterprise")

	rec := do(t, a, http.MethodPost, "/newsletter/subscribe/", url.Values{"email": {"reader@example.com"}}, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestSubscribeIsRateLimited(t *testing.T) {
	a := setupTestApp(t, newFakeSource(3), "enterprise")

	csrf := csrfCookie(t, do(t, a, http.MethodGet, "/", nil, nil))
	form := url.Values{"email": {"reader@example.com"}, "_csrf": {csrf.Value}}
	for i := 0; i < 5; i++ {
		if rec := do(t, a, http.MethodPost, "/newsletter/subscribe/", form, []*http.Cookie{csrf}); rec.Code != http.StatusSeeOther {
			t.Fatalf("attempt %d: status = %d, want 303", i+1, rec.Code)
		}
	}
	rec := do(t, a, http.MethodPost, "/newsletter/subscribe/", form, []*http.Cookie{csrf})
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	src := newFakeSource(25)
	a := setupTestApp(t, src, "enterprise")

	next, _ := moreSrc(t, do(t, a, http.MethodGet, "/", nil, nil).Body.String())
	do(t, a, http.MethodGet, next, nil, nil)

	body := do(t, a, http.MethodGet, "/metrics", nil, nil).Body.String()
	for _, want := range []string{"blogkit_feed_loads_total", "blogkit_http_requests_total", "blogkit_og_builds_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestSetupValidatesConfig(t *testing.T) {
	if err := New(SiteConfig{SessionSecret: "x"}).Setup(); err == nil {
		t.Errorf("expected error without PublicationHost")
	}
	if err := New(SiteConfig{PublicationHost: "blog.example.com"}).Setup(); err == nil {
		t.Errorf("expected error without SessionSecret")
	}
	a := New(SiteConfig{PublicationHost: "blog.example.com", SessionSecret: "x", Theme: "brutalist"}, WithContentSource(newFakeSource(1)))
	if err := a.Setup(); err == nil {
		t.Errorf("expected error for unknown theme")
	}
}
