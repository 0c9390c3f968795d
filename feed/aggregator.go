// Package feed keeps the growing list of posts shown by an open publication
// view and merges cursor-paginated pages into it.
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/eringen/blogkit/content"
)

// PageFetcher loads the page of posts that follows the after cursor.
// It returns content.ErrNotFound when the publication is gone.
type PageFetcher interface {
	FetchPage(ctx context.Context, first int, after string) (*content.PostPage, error)
}

// FetcherFunc adapts a function to PageFetcher.
type FetcherFunc func(ctx context.Context, first int, after string) (*content.PostPage, error)

// FetchPage calls f.
func (f FetcherFunc) FetchPage(ctx context.Context, first int, after string) (*content.PostPage, error) {
	return f(ctx, first, after)
}

// OverlapPolicy decides what happens when LoadNextPage is called while a
// previous call is still fetching.
type OverlapPolicy int

const (
	// RejectWhileInFlight answers StatusBusy without fetching.
	RejectWhileInFlight OverlapPolicy = iota
	// AllowOverlap fetches again with the same cursor. Both pages are
	// appended, so duplicates are possible.
	AllowOverlap
)

// ParseOverlapPolicy parses "reject" or "allow". An empty string is "reject".
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return RejectWhileInFlight, nil
	case "allow":
		return AllowOverlap, nil
	}
	return RejectWhileInFlight, fmt.Errorf("feed: unknown overlap policy %q", s)
}

func (p OverlapPolicy) String() string {
	if p == AllowOverlap {
		return "allow"
	}
	return "reject"
}

// Status is the outcome of LoadNextPage.
type Status int

const (
	StatusAppended Status = iota
	StatusNotFound
	StatusBusy
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAppended:
		return "appended"
	case StatusNotFound:
		return "not_found"
	case StatusBusy:
		return "busy"
	default:
		return "failed"
	}
}

// LoadResult reports what LoadNextPage did. Offset is the length of the item
// list before the new posts were appended.
type LoadResult struct {
	Status Status
	Offset int
	Added  int
}

// State is a copy of an aggregator's state.
type State struct {
	Items      []content.PostSummary
	PageInfo   content.PageInfo
	LoadedMore bool
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithOverlapPolicy sets the overlap policy (default RejectWhileInFlight).
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(a *Aggregator) {
		a.policy = p
	}
}

// Aggregator holds the post list of one view. Items only ever grow, in the
// order the server returned them.
type Aggregator struct {
	fetcher  PageFetcher
	pageSize int
	policy   OverlapPolicy

	mu         sync.Mutex
	items      []content.PostSummary
	pageInfo   content.PageInfo
	loadedMore bool
	inFlight   int
}

// New creates an Aggregator that requests pageSize posts per page.
func New(fetcher PageFetcher, pageSize int, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher:  fetcher,
		pageSize: pageSize,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize seeds the aggregator with the server-rendered first page.
func (a *Aggregator) Initialize(items []content.PostSummary, pageInfo content.PageInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = append([]content.PostSummary(nil), items...)
	a.pageInfo = pageInfo
	a.loadedMore = false
}

// LoadNextPage fetches the page after the current cursor and appends it.
// It does not check HasNextPage; callers gate it with CanLoadMore.
// A vanished publication is a silent no-op (StatusNotFound, nil error).
func (a *Aggregator) LoadNextPage(ctx context.Context) (LoadResult, error) {
	a.mu.Lock()
	if a.inFlight > 0 && a.policy == RejectWhileInFlight {
		a.mu.Unlock()
		return LoadResult{Status: StatusBusy}, nil
	}
	a.inFlight++
	cursor := a.pageInfo.EndCursor
	a.mu.Unlock()

	page, err := a.fetcher.FetchPage(ctx, a.pageSize, cursor)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.inFlight--

	if errors.Is(err, content.ErrNotFound) || (err == nil && page == nil) {
		return LoadResult{Status: StatusNotFound, Offset: len(a.items)}, nil
	}
	if err != nil {
		return LoadResult{Status: StatusFailed, Offset: len(a.items)}, err
	}

	offset := len(a.items)
	a.items = append(a.items, page.Posts...)
	a.pageInfo = page.PageInfo
	a.loadedMore = true
	return LoadResult{Status: StatusAppended, Offset: offset, Added: len(page.Posts)}, nil
}

// Items returns a copy of the aggregated posts.
func (a *Aggregator) Items() []content.PostSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]content.PostSummary(nil), a.items...)
}

// PageInfo returns the page info of the most recently fetched page.
func (a *Aggregator) PageInfo() content.PageInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pageInfo
}

// LoadedMore reports whether at least one incremental load succeeded.
func (a *Aggregator) LoadedMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loadedMore
}

// CanLoadMore reports whether the "load more" control should be offered.
func (a *Aggregator) CanLoadMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pageInfo.CanAdvance()
}

// Snapshot returns a consistent copy of the whole state.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Items:      append([]content.PostSummary(nil), a.items...),
		PageInfo:   a.pageInfo,
		LoadedMore: a.loadedMore,
	}
}

// Hero returns the first n items.
func Hero[T any](items []T, n int) []T {
	if n <= 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// Remainder returns the items after the first n.
func Remainder[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n >= len(items) {
		return nil
	}
	return items[n:]
}
