package blogkit

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/eringen/blogkit/og"
)

const (
	ogWidth  = 1200
	ogHeight = 630
	// Cards are drawn at 1/ogScale size with the 7x13 bitmap face and
	// scaled up, so the text stays crisp.
	ogScale    = 3
	ogMargin   = 16
	lineHeight = 15
	maxTitle   = 4
)

var (
	cardBackground = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}
	cardAccent     = color.RGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
	cardText       = color.RGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}
	cardMuted      = color.RGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff}
)

// ogCard is the text content of an Open Graph image.
type ogCard struct {
	Title   string
	Details []string
	Footer  string
}

func postCard(attrs og.PostAttributes) ogCard {
	c := ogCard{Title: deref(attrs.Title)}
	if author := deref(attrs.Author); author != "" {
		c.Details = append(c.Details, "by "+og.Unescape(author))
	}
	var stats []string
	if attrs.ReadTime > 0 {
		stats = append(stats, strconv.Itoa(attrs.ReadTime)+" min read")
	}
	if attrs.Reactions > 0 {
		stats = append(stats, plural(attrs.Reactions, "reaction"))
	}
	if attrs.Comments > 0 {
		stats = append(stats, plural(attrs.Comments, "comment"))
	}
	if len(stats) > 0 {
		c.Details = append(c.Details, strings.Join(stats, " | "))
	}
	c.Footer = deref(attrs.Domain)
	return c
}

func publicationCard(attrs og.PublicationAttributes) ogCard {
	c := ogCard{Title: deref(attrs.Title)}
	if meta := deref(attrs.Meta); meta != "" {
		c.Details = append(c.Details, og.Unescape(meta))
	}
	var stats []string
	if attrs.Followers != nil && *attrs.Followers > 0 {
		stats = append(stats, plural(*attrs.Followers, "follower"))
	}
	if attrs.Articles > 0 {
		stats = append(stats, plural(attrs.Articles, "article"))
	}
	if len(stats) > 0 {
		c.Details = append(c.Details, strings.Join(stats, " | "))
	}
	c.Footer = deref(attrs.Domain)
	return c
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// renderCard draws c as a 1200x630 PNG.
func renderCard(c ogCard) ([]byte, error) {
	small := image.NewRGBA(image.Rect(0, 0, ogWidth/ogScale, ogHeight/ogScale))
	b := small.Bounds()
	draw.Draw(small, b, image.NewUniform(cardBackground), image.Point{}, draw.Src)
	draw.Draw(small, image.Rect(0, 0, b.Dx(), 4), image.NewUniform(cardAccent), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	cols := (b.Dx() - 2*ogMargin) / face.Advance
	d := &font.Drawer{Dst: small, Face: face}

	y := ogMargin + 2*lineHeight
	d.Src = image.NewUniform(cardText)
	for _, line := range wrapText(og.Unescape(c.Title), cols, maxTitle) {
		d.Dot = fixed.P(ogMargin, y)
		d.DrawString(line)
		y += lineHeight
	}
	y += lineHeight / 2
	d.Src = image.NewUniform(cardMuted)
	for _, detail := range c.Details {
		for _, line := range wrapText(detail, cols, 2) {
			d.Dot = fixed.P(ogMargin, y)
			d.DrawString(line)
			y += lineHeight
		}
	}
	if c.Footer != "" {
		d.Src = image.NewUniform(cardAccent)
		d.Dot = fixed.P(ogMargin, b.Dy()-ogMargin)
		d.DrawString(c.Footer)
	}

	out := image.NewRGBA(image.Rect(0, 0, ogWidth, ogHeight))
	draw.NearestNeighbor.Scale(out, out.Bounds(), small, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// wrapText breaks s into at most maxLines lines of at most cols runes,
// ending with "..." when text is dropped.
func wrapText(s string, cols, maxLines int) []string {
	words := strings.Fields(s)
	var lines []string
	var cur []rune
	for i := 0; i < len(words); i++ {
		w := []rune(words[i])
		if len(w) > cols {
			w = append(w[:cols-3], []rune("...")...)
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= cols:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
		if len(lines) == maxLines {
			last := []rune(lines[maxLines-1])
			if len(last) > cols-3 {
				last = last[:cols-3]
			}
			lines[maxLines-1] = string(last) + "..."
			return lines
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func (a *App) handleOGPost(c echo.Context) error {
	attrs, err := og.DecodePost(c.QueryParam("og"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid og payload")
	}
	return writeCard(c, postCard(attrs))
}

func (a *App) handleOGHome(c echo.Context) error {
	attrs, err := og.DecodePublication(c.QueryParam("og"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid og payload")
	}
	return writeCard(c, publicationCard(attrs))
}

func writeCard(c echo.Context, card ogCard) error {
	data, err := renderCard(card)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", data)
}
