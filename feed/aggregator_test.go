package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/blogkit/content"
)

func posts(ids ...string) []content.PostSummary {
	out := make([]content.PostSummary, len(ids))
	for i, id := range ids {
		out[i] = content.PostSummary{ID: id, Slug: "slug-" + id, Title: "Post " + id}
	}
	return out
}

func ids(items []content.PostSummary) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

type call struct {
	first int
	after string
}

// scripted returns the queued pages in order and records each call.
type scripted struct {
	mu    sync.Mutex
	pages []*content.PostPage
	errs  []error
	calls []call
}

func (s *scripted) FetchPage(_ context.Context, first int, after string) (*content.PostPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{first: first, after: after})
	i := len(s.calls) - 1
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.pages) {
		return s.pages[i], nil
	}
	return &content.PostPage{}, nil
}

func TestInitialize(t *testing.T) {
	a := New(&scripted{}, 10)
	seed := posts("1", "2")
	a.Initialize(seed, content.PageInfo{HasNextPage: true, EndCursor: "c2"})

	s := a.Snapshot()
	assert.Equal(t, []string{"1", "2"}, ids(s.Items))
	assert.Equal(t, content.PageInfo{HasNextPage: true, EndCursor: "c2"}, s.PageInfo)
	assert.False(t, s.LoadedMore)
	assert.True(t, a.CanLoadMore())

	// The seed slice is copied.
	seed[0].ID = "changed"
	assert.Equal(t, "1", a.Items()[0].ID)
}

func TestLoadNextPageAppendsInOrder(t *testing.T) {
	f := &scripted{pages: []*content.PostPage{
		{Posts: posts("3", "4"), PageInfo: content.PageInfo{HasNextPage: true, EndCursor: "c4"}},
		{Posts: posts("5"), PageInfo: content.PageInfo{HasNextPage: false}},
	}}
	a := New(f, 9)
	a.Initialize(posts("1", "2"), content.PageInfo{HasNextPage: true, EndCursor: "c2"})

	res, err := a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Status: StatusAppended, Offset: 2, Added: 2}, res)
	assert.True(t, a.LoadedMore())
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(a.Items()))

	res, err = a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Status: StatusAppended, Offset: 4, Added: 1}, res)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(a.Items()))
	assert.False(t, a.CanLoadMore())

	assert.Equal(t, []call{{first: 9, after: "c2"}, {first: 9, after: "c4"}}, f.calls)
}

func TestLoadNextPageIsMonotonic(t *testing.T) {
	var pages []*content.PostPage
	for i := 0; i < 5; i++ {
		pages = append(pages, &content.PostPage{
			Posts:    posts(fmt.Sprintf("p%d-a", i), fmt.Sprintf("p%d-b", i)),
			PageInfo: content.PageInfo{HasNextPage: true, EndCursor: fmt.Sprintf("c%d", i)},
		})
	}
	a := New(&scripted{pages: pages}, 2)
	a.Initialize(posts("seed"), content.PageInfo{HasNextPage: true, EndCursor: "c"})

	prev := a.Items()
	for i := 0; i < 5; i++ {
		_, err := a.LoadNextPage(context.Background())
		require.NoError(t, err)
		cur := a.Items()
		require.GreaterOrEqual(t, len(cur), len(prev))
		assert.Equal(t, prev, cur[:len(prev)])
		prev = cur
	}
}

func TestLoadNextPageNotFoundLeavesStateUnchanged(t *testing.T) {
	f := &scripted{errs: []error{content.ErrNotFound}}
	a := New(f, 10)
	a.Initialize(posts("1", "2"), content.PageInfo{HasNextPage: true, EndCursor: "c2"})
	before := a.Snapshot()

	res, err := a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, before, a.Snapshot())
}

func TestLoadNextPageNilPageIsNotFound(t *testing.T) {
	a := New(FetcherFunc(func(context.Context, int, string) (*content.PostPage, error) {
		return nil, nil
	}), 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: "c1"})
	before := a.Snapshot()

	res, err := a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Equal(t, before, a.Snapshot())
}

func TestLoadNextPageErrorLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("connection reset")
	f := &scripted{errs: []error{boom}}
	a := New(f, 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: "c1"})
	before := a.Snapshot()

	res, err := a.LoadNextPage(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, before, a.Snapshot())
}

func TestLoadNextPageDoesNotCheckHasNextPage(t *testing.T) {
	f := &scripted{pages: []*content.PostPage{{Posts: posts("2")}}}
	a := New(f, 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: false})
	assert.False(t, a.CanLoadMore())

	res, err := a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAppended, res.Status)
	assert.Equal(t, []call{{first: 10, after: ""}}, f.calls)
}

func TestCanLoadMoreNeedsCursor(t *testing.T) {
	a := New(&scripted{}, 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: ""})
	assert.False(t, a.CanLoadMore())
}

// blocking holds every fetch until release is closed.
type blocking struct {
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blocking) FetchPage(ctx context.Context, _ int, after string) (*content.PostPage, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.started <- struct{}{}
	<-b.release
	return &content.PostPage{
		Posts:    posts("from-" + after),
		PageInfo: content.PageInfo{HasNextPage: true, EndCursor: "next"},
	}, nil
}

func TestRejectWhileInFlight(t *testing.T) {
	b := &blocking{started: make(chan struct{}, 2), release: make(chan struct{})}
	a := New(b, 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: "c1"})

	done := make(chan LoadResult)
	go func() {
		res, _ := a.LoadNextPage(context.Background())
		done <- res
	}()
	<-b.started

	res, err := a.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusBusy, res.Status)

	close(b.release)
	first := <-done
	assert.Equal(t, StatusAppended, first.Status)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, []string{"1", "from-c1"}, ids(a.Items()))
}

func TestAllowOverlapAppendsDuplicates(t *testing.T) {
	b := &blocking{started: make(chan struct{}, 2), release: make(chan struct{})}
	a := New(b, 10, WithOverlapPolicy(AllowOverlap))
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: "c1"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.LoadNextPage(context.Background())
		}()
	}
	<-b.started
	<-b.started
	close(b.release)
	wg.Wait()

	assert.Equal(t, 2, b.calls)
	assert.Equal(t, []string{"1", "from-c1", "from-c1"}, ids(a.Items()))
}

func TestBusyClearsAfterCompletion(t *testing.T) {
	f := &scripted{pages: []*content.PostPage{
		{Posts: posts("2"), PageInfo: content.PageInfo{HasNextPage: true, EndCursor: "c2"}},
		{Posts: posts("3")},
	}}
	a := New(f, 10)
	a.Initialize(posts("1"), content.PageInfo{HasNextPage: true, EndCursor: "c1"})

	for i := 0; i < 2; i++ {
		res, err := a.LoadNextPage(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusAppended, res.Status)
	}
}

func TestParseOverlapPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want OverlapPolicy
		err  bool
	}{
		{"", RejectWhileInFlight, false},
		{"reject", RejectWhileInFlight, false},
		{"ALLOW", AllowOverlap, false},
		{"sometimes", RejectWhileInFlight, true},
	}
	for _, tt := range tests {
		got, err := ParseOverlapPolicy(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestHeroAndRemainder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2, 3}, Hero(items, 3))
	assert.Equal(t, []int{4, 5}, Remainder(items, 3))
	assert.Equal(t, items, Hero(items, 10))
	assert.Nil(t, Remainder(items, 10))
	assert.Nil(t, Hero(items, 0))
	assert.Equal(t, items, Remainder(items, 0))
	assert.Nil(t, Hero([]int(nil), 3))
}

func TestRegistryOpenGetClose(t *testing.T) {
	r := NewRegistry(time.Minute, 0)
	a := New(&scripted{}, 10)

	id := r.Open(a)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get(id)
	require.True(t, ok)
	assert.Same(t, a, got)

	r.Close(id)
	_, ok = r.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySweepEvictsIdleViews(t *testing.T) {
	r := NewRegistry(time.Minute, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := r.Open(New(&scripted{}, 10))
	now = now.Add(45 * time.Second)
	fresh := r.Open(New(&scripted{}, 10))
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, r.Sweep(now))
	_, ok := r.Get(stale)
	assert.False(t, ok)
	_, ok = r.Get(fresh)
	assert.True(t, ok)
}

func TestRegistryGetKeepsViewAlive(t *testing.T) {
	r := NewRegistry(time.Minute, 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	id := r.Open(New(&scripted{}, 10))
	now = now.Add(50 * time.Second)
	_, ok := r.Get(id)
	require.True(t, ok)
	now = now.Add(50 * time.Second)

	assert.Equal(t, 0, r.Sweep(now))
}

func TestRegistryEvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	r := NewRegistry(time.Hour, 2)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	first := r.Open(New(&scripted{}, 10))
	now = now.Add(time.Second)
	second := r.Open(New(&scripted{}, 10))
	now = now.Add(time.Second)
	_, ok := r.Get(first)
	require.True(t, ok)
	now = now.Add(time.Second)

	third := r.Open(New(&scripted{}, 10))
	assert.Equal(t, 2, r.Len())
	_, ok = r.Get(second)
	assert.False(t, ok, "least recently used view should be evicted")
	_, ok = r.Get(first)
	assert.True(t, ok)
	_, ok = r.Get(third)
	assert.True(t, ok)

	for i := 0; i < 100; i++ {
		r.Open(New(&scripted{}, 10))
	}
	assert.Equal(t, 2, r.Len())
}

func TestStartJanitorSweepsIdleViews(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, 0)
	r.Open(New(&scripted{}, 10))
	require.Equal(t, 1, r.Len())

	stop := r.StartJanitor(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
	r.Open(New(&scripted{}, 10))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, r.Len(), "stopped janitor must not sweep")
}
