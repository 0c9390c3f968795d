// Package content talks to the remote GraphQL content API and decodes its
// responses into validated publication and post entities.
package content

import (
	"errors"
	"time"
)

// DefaultCoverURL is used for posts that have no cover image.
const DefaultCoverURL = "/public/default-cover.svg"

var (
	// ErrNotFound is returned when the API answers with a null publication or post.
	ErrNotFound = errors.New("content: not found")
	// ErrInvalidResponse is returned when a response fails boundary validation.
	ErrInvalidResponse = errors.New("content: invalid response")
)

// Author is the writer of a post or the owner of a publication.
type Author struct {
	Name           string `json:"name"`
	Username       string `json:"username,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	FollowersCount int    `json:"followersCount,omitempty"`
}

// PostSummary is a post as it appears in a list.
type PostSummary struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Brief             string    `json:"brief"`
	Slug              string    `json:"slug"`
	URL               string    `json:"url,omitempty"`
	CoverImageURL     string    `json:"coverImageUrl,omitempty"`
	PublishedAt       time.Time `json:"publishedAt"`
	Author            Author    `json:"author"`
	ReadTimeInMinutes int       `json:"readTimeInMinutes,omitempty"`
	ReactionCount     int       `json:"reactionCount,omitempty"`
	ResponseCount     int       `json:"responseCount,omitempty"`
}

// CoverImage returns the cover image URL or DefaultCoverURL.
func (p PostSummary) CoverImage() string {
	if p.CoverImageURL == "" {
		return DefaultCoverURL
	}
	return p.CoverImageURL
}

// PageInfo describes the position of a page in a cursor-paginated list.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor,omitempty"`
}

// CanAdvance reports whether another page can be requested. A next page
// without a cursor counts as exhausted.
func (p PageInfo) CanAdvance() bool {
	return p.HasNextPage && p.EndCursor != ""
}

// PostPage is one page of a publication's posts.
type PostPage struct {
	Posts          []PostSummary `json:"posts"`
	PageInfo       PageInfo      `json:"pageInfo"`
	TotalDocuments int           `json:"totalDocuments,omitempty"`
}

// Publication is the blog that owns the posts.
type Publication struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	DisplayTitle   string   `json:"displayTitle,omitempty"`
	DescriptionSEO string   `json:"descriptionSEO,omitempty"`
	URL            string   `json:"url"`
	IsTeam         bool     `json:"isTeam,omitempty"`
	Favicon        string   `json:"favicon,omitempty"`
	Logo           string   `json:"logo,omitempty"`
	OGImage        string   `json:"ogImage,omitempty"`
	FollowersCount int      `json:"followersCount,omitempty"`
	Author         Author   `json:"author"`
	Posts          PostPage `json:"posts"`
}

// Tag is a post tag.
type Tag struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Post is a single post with its rendered content.
type Post struct {
	PostSummary
	ContentHTML    string `json:"contentHtml"`
	Tags           []Tag  `json:"tags,omitempty"`
	SEOTitle       string `json:"seoTitle,omitempty"`
	SEODescription string `json:"seoDescription,omitempty"`
	OGImage        string `json:"ogImage,omitempty"`
}
