package blogkit

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eringen/blogkit/content"
)

var errUpstream = errors.New("upstream unavailable")

type subscribeCall struct {
	publicationID string
	email         string
}

// fakeSource serves a publication of n posts, paginated by cursor "c<offset>".
type fakeSource struct {
	mu         sync.Mutex
	pub        content.Publication
	posts      []content.PostSummary
	fullPosts  map[string]content.Post
	err        error
	homeCalls  int
	postCalls  int
	moreCalls  []string
	subscribes []subscribeCall
	subStatus  string
	subErr     error
}

func newFakeSource(n int) *fakeSource {
	f := &fakeSource{
		pub: content.Publication{
			ID:             "pub1",
			Title:          "Example Blog",
			DescriptionSEO: "Notes on things",
			URL:            "https://blog.example.com",
			Author:         content.Author{Name: "Ada Lovelace", ProfilePicture: "https://cdn.example.com/ada.png", FollowersCount: 12},
		},
		fullPosts: make(map[string]content.Post),
		subStatus: "PENDING",
	}
	for i := 0; i < n; i++ {
		p := content.PostSummary{
			ID:          fmt.Sprintf("p%d", i),
			Slug:        fmt.Sprintf("post-%d", i),
			Title:       fmt.Sprintf("Post %d", i),
			Brief:       fmt.Sprintf("Brief %d", i),
			PublishedAt: time.Date(2024, 1, 30-i%28, 10, 0, 0, 0, time.UTC),
			Author:      content.Author{Name: "Ada Lovelace"},
		}
		f.posts = append(f.posts, p)
		f.fullPosts[p.Slug] = content.Post{PostSummary: p, ContentHTML: "<p>Body " + p.ID + "</p>"}
	}
	return f
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeSource) page(offset, first int) content.PostPage {
	end := offset + first
	if end > len(f.posts) {
		end = len(f.posts)
	}
	page := content.PostPage{
		Posts:          append([]content.PostSummary(nil), f.posts[offset:end]...),
		TotalDocuments: len(f.posts),
	}
	if end < len(f.posts) {
		page.PageInfo = content.PageInfo{HasNextPage: true, EndCursor: fmt.Sprintf("c%d", end)}
	} else {
		page.PageInfo = content.PageInfo{EndCursor: fmt.Sprintf("c%d", end)}
	}
	return page
}

func (f *fakeSource) PostsByPublication(ctx context.Context, host string, first int) (*content.Publication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.homeCalls++
	if f.err != nil {
		return nil, f.err
	}
	pub := f.pub
	pub.Posts = f.page(0, first)
	return &pub, nil
}

func (f *fakeSource) MorePosts(ctx context.Context, host string, first int, after string) (*content.PostPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moreCalls = append(f.moreCalls, after)
	if f.err != nil {
		return nil, f.err
	}
	var offset int
	if _, err := fmt.Sscanf(after, "c%d", &offset); err != nil {
		return nil, fmt.Errorf("bad cursor %q", after)
	}
	page := f.page(offset, first)
	return &page, nil
}

func (f *fakeSource) SinglePost(ctx context.Context, host, slug string) (*content.Publication, *content.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postCalls++
	if f.err != nil {
		return nil, nil, f.err
	}
	post, ok := f.fullPosts[slug]
	if !ok {
		return nil, nil, content.ErrNotFound
	}
	pub := f.pub
	return &pub, &post, nil
}

func (f *fakeSource) SubscribeToNewsletter(ctx context.Context, publicationID, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, subscribeCall{publicationID, email})
	return f.subStatus, f.subErr
}

func (f *fakeSource) counts() (home, post, more int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.homeCalls, f.postCalls, len(f.moreCalls)
}

func setupTestApp(t *testing.T, src *fakeSource, theme string) *App {
	t.Helper()
	a := New(SiteConfig{
		PublicationHost: "blog.example.com",
		SessionSecret:   "test-secret-test-secret-test-sec",
		Theme:           theme,
		SnapshotPath:    filepath.Join(t.TempDir(), "snapshots.db"),
		LogLevel:        "off",
	}, WithContentSource(src), WithStaticDir(t.TempDir()))
	if err := a.Setup(); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}
