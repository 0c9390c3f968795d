package blogkit

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const sessionName = "blogkit_session"

// routeClass groups request paths by how the middleware treats them.
type routeClass int

const (
	pageRoute     routeClass = iota // HTML pages and form posts
	assetRoute                      // /public/...
	ogImageRoute                    // /api/og/...
	fragmentRoute                   // /feed/:view/more
	feedFileRoute                   // sitemap, RSS, robots
	metricsRoute
)

func classify(path string) routeClass {
	switch {
	case strings.HasPrefix(path, "/public"):
		return assetRoute
	case strings.HasPrefix(path, "/api/og/"):
		return ogImageRoute
	case strings.HasPrefix(path, "/feed/"):
		return fragmentRoute
	case path == "/sitemap.xml" || path == "/rss.xml" || path == "/robots.txt":
		return feedFileRoute
	case path == "/metrics":
		return metricsRoute
	}
	return pageRoute
}

func routeOf(c echo.Context) routeClass {
	return classify(c.Request().URL.Path)
}

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)
	e.HTTPErrorHandler = a.httpErrorHandler

	e.Pre(middleware.NonWWWRedirect())

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		Skipper: func(c echo.Context) bool {
			return routeOf(c) == assetRoute || routeOf(c) == metricsRoute
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger().Infof("%s %s %s -> %d (%s)", v.RemoteIP, v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(metricsMiddleware)

	// PNG cards and assets are either binary or already small.
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			r := routeOf(c)
			return r == assetRoute || r == ogImageRoute
		},
	}))

	secure := middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' https: data:; font-src 'self' https:; connect-src 'self'; frame-src https:",
	}
	if a.Config.CookieSecure {
		secure.HSTSMaxAge = 31536000
	}
	e.Use(middleware.SecureWithConfig(secure))

	e.Use(session.Middleware(a.newSessionStore()))

	// Only pages render or accept forms.
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   a.Config.CookieSecure,
		Skipper: func(c echo.Context) bool {
			return routeOf(c) != pageRoute
		},
		ErrorHandler: func(err error, c echo.Context) error {
			return c.String(http.StatusForbidden, "Forbidden")
		},
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			return routeOf(c) != pageRoute
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Response().Header()
		switch routeOf(c) {
		case assetRoute:
			h.Set("Cache-Control", "public, max-age=31536000, immutable")
		case ogImageRoute:
			h.Set("Cache-Control", "public, max-age=86400")
		case feedFileRoute:
			h.Set("Cache-Control", "public, max-age=3600")
		default:
			// Pages carry a CSRF token; fragments depend on the view.
			h.Set("Cache-Control", "no-store")
		}
		return next(c)
	}
}

func (a *App) newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(a.Config.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 365,
		SameSite: http.SameSiteLaxMode,
		Secure:   a.Config.CookieSecure,
	}
	return store
}

// IsSubscribed reports whether the visitor subscribed to the newsletter in
// this browser.
func IsSubscribed(c echo.Context) bool {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return false
	}
	ok, _ := sess.Values["subscribed"].(bool)
	return ok
}

func setSubscribed(c echo.Context, notice string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.Values["subscribed"] = true
	if notice != "" {
		sess.AddFlash(notice)
	}
	return sess.Save(c.Request(), c.Response())
}

func addNotice(c echo.Context, notice string) error {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return err
	}
	sess.AddFlash(notice)
	return sess.Save(c.Request(), c.Response())
}

// takeNotice pops the pending flash message, if any.
func takeNotice(c echo.Context) string {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return ""
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return ""
	}
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		c.Logger().Warnf("session: %v", err)
	}
	msg, _ := flashes[0].(string)
	return msg
}

// CsrfToken extracts the CSRF token from the Echo context.
func CsrfToken(c echo.Context) string {
	token, _ := c.Get(middleware.DefaultCSRFConfig.ContextKey).(string)
	return token
}
