package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/machinebox/graphql"
	"golang.org/x/time/rate"
)

// Logger is the subset of the echo/gommon logger the client writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Client queries a publication on the GraphQL content API.
type Client struct {
	endpoint string
	gql      *graphql.Client
	limiter  *rate.Limiter
	logger   Logger
	http     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRateLimit throttles outgoing requests. Pass rate.Inf to disable.
func WithRateLimit(l *rate.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger for request tracing and warnings.
func WithLogger(l Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Client for the GraphQL endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(10), 5),
		logger:   log.New("content"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.gql = graphql.NewClient(endpoint, graphql.WithHTTPClient(c.http))
	c.gql.Log = func(s string) {
		c.logger.Debugf("%s", s)
	}
	return c
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

func (c *Client) run(ctx context.Context, op string, req *graphql.Request, resp interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		apiRequests.WithLabelValues(op, "throttled").Inc()
		return fmt.Errorf("content: %s: %w", op, err)
	}
	start := time.Now()
	err := c.gql.Run(ctx, req, resp)
	apiDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequests.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("content: %s: %w", op, err)
	}
	apiRequests.WithLabelValues(op, "ok").Inc()
	return nil
}

// PostsByPublication fetches the publication together with its first page of posts.
func (c *Client) PostsByPublication(ctx context.Context, host string, first int) (*Publication, error) {
	req := graphql.NewRequest(postsByPublicationQuery)
	req.Var("host", host)
	req.Var("first", first)

	var resp publicationResponse
	if err := c.run(ctx, "PostsByPublication", req, &resp); err != nil {
		return nil, err
	}
	if resp.Publication == nil {
		return nil, ErrNotFound
	}
	pub, err := resp.Publication.toPublication()
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

// MorePosts fetches the page of posts that follows the after cursor. An empty
// cursor is sent as null.
func (c *Client) MorePosts(ctx context.Context, host string, first int, after string) (*PostPage, error) {
	req := graphql.NewRequest(morePostsByPublicationQuery)
	req.Var("host", host)
	req.Var("first", first)
	if after != "" {
		req.Var("after", after)
	} else {
		req.Var("after", nil)
	}

	var resp publicationResponse
	if err := c.run(ctx, "MorePostsByPublication", req, &resp); err != nil {
		return nil, err
	}
	if resp.Publication == nil {
		return nil, ErrNotFound
	}
	page, err := resp.Publication.Posts.toPage()
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// SinglePost fetches one post by slug along with its publication.
func (c *Client) SinglePost(ctx context.Context, host, slug string) (*Publication, *Post, error) {
	req := graphql.NewRequest(singlePostByPublicationQuery)
	req.Var("host", host)
	req.Var("slug", slug)

	var resp publicationResponse
	if err := c.run(ctx, "SinglePostByPublication", req, &resp); err != nil {
		return nil, nil, err
	}
	if resp.Publication == nil || resp.Publication.Post == nil {
		return nil, nil, ErrNotFound
	}
	pub, err := resp.Publication.toPublication()
	if err != nil {
		return nil, nil, err
	}
	post, err := resp.Publication.Post.toPost()
	if err != nil {
		return nil, nil, err
	}
	return &pub, &post, nil
}

// SubscribeToNewsletter subscribes email to the publication's newsletter and
// returns the status reported by the API (e.g. "PENDING").
func (c *Client) SubscribeToNewsletter(ctx context.Context, publicationID, email string) (string, error) {
	req := graphql.NewRequest(subscribeToNewsletterMutation)
	req.Var("input", map[string]string{
		"publicationId": publicationID,
		"email":         email,
	})

	var resp subscribeResponse
	if err := c.run(ctx, "SubscribeToNewsletter", req, &resp); err != nil {
		return "", err
	}
	if resp.SubscribeToNewsletter == nil {
		return "", errors.New("content: SubscribeToNewsletter: empty response")
	}
	return resp.SubscribeToNewsletter.Status, nil
}
