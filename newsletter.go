package blogkit

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

type subscribeForm struct {
	Email string `validate:"required,email,max=254"`
}

// Newsletter notices shown on the home page after a subscribe attempt.
const (
	NoticePending   = "Almost there! Check your inbox to confirm your subscription."
	NoticeConfirmed = "You're subscribed. Thanks for reading!"
	NoticeInvalid   = "Please enter a valid email address."
	NoticeFailed    = "We couldn't subscribe you right now. Please try again later."
)

func subscribeNotice(status string) string {
	switch strings.ToUpper(status) {
	case "CONFIRMED":
		return NoticeConfirmed
	default:
		return NoticePending
	}
}

func (a *App) handleSubscribe(c echo.Context) error {
	if !a.subscribeLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many subscribe attempts. Try again later.")
	}
	form := subscribeForm{Email: strings.TrimSpace(c.FormValue("email"))}
	if err := validate.Struct(form); err != nil {
		return a.redirectHome(c, NoticeInvalid)
	}

	ctx := c.Request().Context()
	pub, err := a.Cache.Home(ctx)
	if err != nil {
		return err
	}
	status, err := a.Content.SubscribeToNewsletter(ctx, pub.ID, form.Email)
	if err != nil {
		c.Logger().Warnf("newsletter: subscribe: %v", err)
		return a.redirectHome(c, NoticeFailed)
	}
	if err := setSubscribed(c, subscribeNotice(status)); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) redirectHome(c echo.Context, notice string) error {
	if err := addNotice(c, notice); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
