package content

import (
	"fmt"
	"time"
)

// wire* types mirror the GraphQL response shape. GraphQL nulls decode to
// zero values; pointers are used where absence matters.

type wireAuthor struct {
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profilePicture"`
	FollowersCount int    `json:"followersCount"`
}

type wireImage struct {
	URL string `json:"url"`
}

type wirePost struct {
	ID                string      `json:"id"`
	Title             string      `json:"title"`
	Brief             string      `json:"brief"`
	Slug              string      `json:"slug"`
	URL               string      `json:"url"`
	PublishedAt       time.Time   `json:"publishedAt"`
	CoverImage        *wireImage  `json:"coverImage"`
	Author            *wireAuthor `json:"author"`
	ReadTimeInMinutes int         `json:"readTimeInMinutes"`
	ReactionCount     int         `json:"reactionCount"`
	ResponseCount     int         `json:"responseCount"`
	Content           *struct {
		HTML string `json:"html"`
	} `json:"content"`
	Tags []Tag `json:"tags"`
	SEO  *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"seo"`
	OGMetaData *struct {
		Image string `json:"image"`
	} `json:"ogMetaData"`
}

type wirePageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type wirePostConnection struct {
	TotalDocuments int `json:"totalDocuments"`
	Edges          []struct {
		Node wirePost `json:"node"`
	} `json:"edges"`
	PageInfo wirePageInfo `json:"pageInfo"`
}

type wirePublication struct {
	ID             string      `json:"id"`
	Title          string      `json:"title"`
	DisplayTitle   string      `json:"displayTitle"`
	DescriptionSEO string      `json:"descriptionSEO"`
	URL            string      `json:"url"`
	IsTeam         bool        `json:"isTeam"`
	Favicon        string      `json:"favicon"`
	FollowersCount int         `json:"followersCount"`
	Author         *wireAuthor `json:"author"`
	Preferences    *struct {
		Logo string `json:"logo"`
	} `json:"preferences"`
	OGMetaData *struct {
		Image string `json:"image"`
	} `json:"ogMetaData"`
	Posts *wirePostConnection `json:"posts"`
	Post  *wirePost           `json:"post"`
}

type publicationResponse struct {
	Publication *wirePublication `json:"publication"`
}

type subscribeResponse struct {
	SubscribeToNewsletter *struct {
		Status string `json:"status"`
	} `json:"subscribeToNewsletter"`
}

func (a *wireAuthor) toAuthor() Author {
	if a == nil {
		return Author{}
	}
	return Author{
		Name:           a.Name,
		Username:       a.Username,
		ProfilePicture: a.ProfilePicture,
		FollowersCount: a.FollowersCount,
	}
}

func (p wirePageInfo) toPageInfo() PageInfo {
	info := PageInfo{HasNextPage: p.HasNextPage}
	if p.EndCursor != nil {
		info.EndCursor = *p.EndCursor
	}
	return info
}

func (w wirePost) toSummary() (PostSummary, error) {
	if w.ID == "" {
		return PostSummary{}, fmt.Errorf("%w: post without id", ErrInvalidResponse)
	}
	if w.Slug == "" {
		return PostSummary{}, fmt.Errorf("%w: post %s without slug", ErrInvalidResponse, w.ID)
	}
	if w.Author == nil {
		return PostSummary{}, fmt.Errorf("%w: post %s without author", ErrInvalidResponse, w.ID)
	}
	p := PostSummary{
		ID:                w.ID,
		Title:             w.Title,
		Brief:             w.Brief,
		Slug:              w.Slug,
		URL:               w.URL,
		PublishedAt:       w.PublishedAt,
		Author:            w.Author.toAuthor(),
		ReadTimeInMinutes: w.ReadTimeInMinutes,
		ReactionCount:     w.ReactionCount,
		ResponseCount:     w.ResponseCount,
	}
	if w.CoverImage != nil {
		p.CoverImageURL = w.CoverImage.URL
	}
	return p, nil
}

func (w wirePost) toPost() (Post, error) {
	summary, err := w.toSummary()
	if err != nil {
		return Post{}, err
	}
	p := Post{PostSummary: summary, Tags: w.Tags}
	if w.Content != nil {
		p.ContentHTML = w.Content.HTML
	}
	if w.SEO != nil {
		p.SEOTitle = w.SEO.Title
		p.SEODescription = w.SEO.Description
	}
	if w.OGMetaData != nil {
		p.OGImage = w.OGMetaData.Image
	}
	return p, nil
}

func (c *wirePostConnection) toPage() (PostPage, error) {
	if c == nil {
		return PostPage{}, fmt.Errorf("%w: publication without posts", ErrInvalidResponse)
	}
	page := PostPage{
		Posts:          make([]PostSummary, 0, len(c.Edges)),
		PageInfo:       c.PageInfo.toPageInfo(),
		TotalDocuments: c.TotalDocuments,
	}
	for _, edge := range c.Edges {
		p, err := edge.Node.toSummary()
		if err != nil {
			return PostPage{}, err
		}
		page.Posts = append(page.Posts, p)
	}
	return page, nil
}

// toPublication converts the publication fields. Posts are converted only
// when the query selected them.
func (w *wirePublication) toPublication() (Publication, error) {
	pub := Publication{
		ID:             w.ID,
		Title:          w.Title,
		DisplayTitle:   w.DisplayTitle,
		DescriptionSEO: w.DescriptionSEO,
		URL:            w.URL,
		IsTeam:         w.IsTeam,
		Favicon:        w.Favicon,
		FollowersCount: w.FollowersCount,
		Author:         w.Author.toAuthor(),
	}
	if w.Preferences != nil {
		pub.Logo = w.Preferences.Logo
	}
	if w.OGMetaData != nil {
		pub.OGImage = w.OGMetaData.Image
	}
	if w.Posts != nil {
		page, err := w.Posts.toPage()
		if err != nil {
			return Publication{}, err
		}
		pub.Posts = page
	}
	return pub, nil
}
