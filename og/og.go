// Package og builds Open Graph image URLs for posts and publications. The
// attributes of the card are serialized to JSON and carried base64-encoded in
// the "og" query parameter of the image endpoint.
package og

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/labstack/gommon/log"

	"github.com/eringen/blogkit/content"
)

var (
	ErrMissingAuthor = errors.New("og: missing author")
	ErrInvalidURL    = errors.New("og: invalid url")
)

// Logger is the subset of the echo/gommon logger the builder reports failures to.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// Author is the author part of a builder input.
type Author struct {
	Name           string
	ProfilePicture string
	FollowersCount int
}

// PostInput is what BuildPost reads from a post.
type PostInput struct {
	Title             string
	ReadTimeInMinutes int
	ReactionCount     int
	ResponseCount     int
	Author            *Author
}

// PublicationInput is what BuildPublication reads from a publication.
type PublicationInput struct {
	Title          string
	IsTeam         bool
	Favicon        string
	Author         *Author
	FollowersCount int
	DescriptionSEO string
	URL            string
	TotalDocuments int
	Logo           string
}

// PostInputFrom converts a post summary.
func PostInputFrom(p content.PostSummary) PostInput {
	return PostInput{
		Title:             p.Title,
		ReadTimeInMinutes: p.ReadTimeInMinutes,
		ReactionCount:     p.ReactionCount,
		ResponseCount:     p.ResponseCount,
		Author: &Author{
			Name:           p.Author.Name,
			ProfilePicture: p.Author.ProfilePicture,
			FollowersCount: p.Author.FollowersCount,
		},
	}
}

// PublicationInputFrom converts a publication.
func PublicationInputFrom(p content.Publication) PublicationInput {
	return PublicationInput{
		Title:   p.Title,
		IsTeam:  p.IsTeam,
		Favicon: p.Favicon,
		Author: &Author{
			Name:           p.Author.Name,
			ProfilePicture: p.Author.ProfilePicture,
			FollowersCount: p.Author.FollowersCount,
		},
		FollowersCount: p.FollowersCount,
		DescriptionSEO: p.DescriptionSEO,
		URL:            p.URL,
		TotalDocuments: p.Posts.TotalDocuments,
		Logo:           p.Logo,
	}
}

// PostAttributes is the payload of a post card. Pointer fields are set as
// soon as their step is reached, even when empty.
type PostAttributes struct {
	Title     *string `json:"title,omitempty"`
	Author    *string `json:"author,omitempty"`
	Domain    *string `json:"domain,omitempty"`
	Photo     string  `json:"photo,omitempty"`
	ReadTime  int     `json:"readTime,omitempty"`
	Reactions int     `json:"reactions,omitempty"`
	Comments  int     `json:"comments,omitempty"`
}

// PublicationAttributes is the payload of a publication home card.
type PublicationAttributes struct {
	Title     *string `json:"title,omitempty"`
	Domain    *string `json:"domain,omitempty"`
	Followers *int    `json:"followers,omitempty"`
	Photo     string  `json:"photo,omitempty"`
	Logo      string  `json:"logo,omitempty"`
	IsTeam    bool    `json:"isTeam,omitempty"`
	Meta      *string `json:"meta,omitempty"`
	Favicon   string  `json:"favicon,omitempty"`
	Articles  int     `json:"articles,omitempty"`
}

// Result is the outcome of a build. URL is always usable; when Partial is
// set, Err says which step failed and the payload holds the attributes
// computed before it.
type Result struct {
	URL     string
	Payload string
	JSON    []byte
	Partial bool
	Err     error
}

// Option configures a Builder.
type Option func(*Builder)

// WithEncoding selects the base64 alphabet (default base64.URLEncoding).
func WithEncoding(enc *base64.Encoding) Option {
	return func(b *Builder) {
		b.enc = enc
	}
}

// WithLogger sets where construction failures are logged.
func WithLogger(l Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// Builder builds OG image URLs for one publication host.
type Builder struct {
	host   string
	enc    *base64.Encoding
	logger Logger
}

// NewBuilder creates a Builder. publicationHost is the host serving the
// post image endpoint, e.g. "blog.example.com".
func NewBuilder(publicationHost string, opts ...Option) *Builder {
	b := &Builder{
		host:   publicationHost,
		enc:    base64.URLEncoding,
		logger: log.New("og"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PostEndpoint returns the post image endpoint URL.
func (b *Builder) PostEndpoint() string {
	return "https://" + b.host + "/api/og/post"
}

// BuildPost returns the OG image URL for a post. It never fails.
func (b *Builder) BuildPost(in PostInput) Result {
	ogURL := b.PostEndpoint()
	var attrs PostAttributes
	err := fillPost(&attrs, ogURL, in)
	return b.finish("post", ogURL, &attrs, err)
}

// BuildPublication returns the OG image URL for a publication home page. It
// never fails.
func (b *Builder) BuildPublication(in PublicationInput) Result {
	ogURL := in.URL + "/api/og/home"
	var attrs PublicationAttributes
	err := fillPublication(&attrs, in)
	return b.finish("publication", ogURL, &attrs, err)
}

func fillPost(attrs *PostAttributes, ogURL string, in PostInput) error {
	attrs.Title = ptr(EncodeURIComponent(StripEmojis(in.Title)))
	if in.Author == nil {
		return ErrMissingAuthor
	}
	attrs.Author = ptr(EncodeURIComponent(in.Author.Name))
	domain, err := hostname(ogURL)
	if err != nil {
		return err
	}
	attrs.Domain = ptr(domain)

	if in.Author.ProfilePicture != "" {
		attrs.Photo = in.Author.ProfilePicture
	}
	if in.ReadTimeInMinutes != 0 {
		attrs.ReadTime = in.ReadTimeInMinutes
	}
	if in.ReactionCount > 0 {
		attrs.Reactions = in.ReactionCount
	}
	if in.ResponseCount > 0 {
		attrs.Comments = in.ResponseCount
	}
	return nil
}

func fillPublication(attrs *PublicationAttributes, in PublicationInput) error {
	if in.Title != "" {
		attrs.Title = ptr(EncodeURIComponent(StripEmojis(in.Title)))
	} else {
		if in.Author == nil {
			return ErrMissingAuthor
		}
		attrs.Title = ptr(FallbackTitle(in.Author.Name, in.IsTeam))
	}
	domain, err := hostname(in.URL)
	if err != nil {
		return err
	}
	attrs.Domain = ptr(domain)

	if in.IsTeam {
		attrs.Followers = ptr(in.FollowersCount)
	} else {
		if in.Author == nil {
			return ErrMissingAuthor
		}
		attrs.Followers = ptr(in.Author.FollowersCount)
	}
	if in.Author == nil {
		return ErrMissingAuthor
	}
	if in.Author.ProfilePicture != "" && !in.IsTeam {
		attrs.Photo = in.Author.ProfilePicture
	}
	if in.Logo != "" {
		attrs.Logo = in.Logo
	}
	if in.IsTeam {
		attrs.IsTeam = true
	}
	if in.DescriptionSEO != "" {
		attrs.Meta = ptr(EncodeURIComponent(StripEmojis(in.DescriptionSEO)))
	}
	if in.Favicon != "" {
		attrs.Favicon = in.Favicon
	}
	if in.TotalDocuments > 0 {
		attrs.Articles = in.TotalDocuments
	}
	return nil
}

// FallbackTitle is the home card title of a publication without a title.
// The non-team form keeps the double space of the team/non-team template.
func FallbackTitle(authorName string, isTeam bool) string {
	team := ""
	if isTeam {
		team = "team"
	}
	return authorName + "'s " + team + " blog"
}

func (b *Builder) finish(kind, ogURL string, attrs interface{}, buildErr error) Result {
	res := Result{Err: buildErr, Partial: buildErr != nil}
	if buildErr != nil {
		b.logger.Errorf("og: build %s: %v", kind, buildErr)
	}
	data, err := marshal(attrs)
	if err != nil {
		b.logger.Errorf("og: encode %s: %v", kind, err)
		data = []byte("{}")
		res.Partial = true
		if res.Err == nil {
			res.Err = err
		}
	}
	res.JSON = data
	res.Payload = b.enc.EncodeToString(data)
	res.URL = ogURL + "?og=" + res.Payload
	return res
}

func marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func hostname(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	return host, nil
}

func ptr[T any](v T) *T {
	return &v
}

// Decode reverses the payload encoding into v. Both the URL-safe and the
// standard base64 alphabets are accepted, padded or not.
func Decode(payload string, v interface{}) error {
	var data []byte
	var err error
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding, base64.StdEncoding, base64.RawURLEncoding, base64.RawStdEncoding,
	} {
		data, err = enc.DecodeString(payload)
		if err == nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("og: decode payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("og: decode payload: %w", err)
	}
	return nil
}

// DecodePost decodes a post card payload.
func DecodePost(payload string) (PostAttributes, error) {
	var attrs PostAttributes
	err := Decode(payload, &attrs)
	return attrs, err
}

// DecodePublication decodes a publication card payload.
func DecodePublication(payload string) (PublicationAttributes, error) {
	var attrs PublicationAttributes
	err := Decode(payload, &attrs)
	return attrs, err
}

// Unescape reverses EncodeURIComponent, returning s unchanged when it is not
// valid percent-encoding.
func Unescape(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
