package blogkit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eringen/blogkit/content"
)

const homeKey = "home"

// DefaultMissTTL is how long a not-found answer is remembered.
const DefaultMissTTL = 30 * time.Second

func postKey(slug string) string {
	return "post:" + slug
}

// CacheLogger is the subset of the echo logger the page cache writes to.
type CacheLogger interface {
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type postEntry struct {
	Publication *content.Publication `json:"publication"`
	Post        *content.Post        `json:"post"`
}

type cacheEntry struct {
	home     *content.Publication
	post     postEntry
	notFound bool
	fetched  time.Time
}

// PageCache is an in-memory TTL cache of the home page and single posts.
// When the content API fails it falls back to the last snapshot, if any.
// A not-found answer is never replaced by a snapshot; it is cached for
// MissTTL.
//
// Upstream calls run outside the cache lock, one per key at a time.
type PageCache struct {
	Snapshots *SnapshotStore
	Logger    CacheLogger
	MissTTL   time.Duration

	mu        sync.RWMutex
	entries   map[string]cacheEntry
	group     singleflight.Group
	ttl       time.Duration
	src       ContentSource
	host      string
	firstPage int
	now       func() time.Time
}

// NewPageCache creates a PageCache that loads firstPage posts of host's
// home page from src.
func NewPageCache(src ContentSource, host string, firstPage int, ttl time.Duration) *PageCache {
	return &PageCache{
		MissTTL:   DefaultMissTTL,
		entries:   make(map[string]cacheEntry),
		ttl:       ttl,
		src:       src,
		host:      host,
		firstPage: firstPage,
		now:       time.Now,
	}
}

// lookup returns the entry for key if it is still fresh.
func (c *PageCache) lookup(key string) (cacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return e, false
	}
	ttl := c.ttl
	if e.notFound {
		ttl = c.MissTTL
	}
	return e, c.now().Sub(e.fetched) < ttl
}

func (c *PageCache) store(key string, e cacheEntry) {
	e.fetched = c.now()
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *PageCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Home returns the publication with its first page of posts.
func (c *PageCache) Home(ctx context.Context) (*content.Publication, error) {
	if e, ok := c.lookup(homeKey); ok {
		if e.notFound {
			return nil, content.ErrNotFound
		}
		return e.home, nil
	}

	v, err, _ := c.group.Do(homeKey, func() (interface{}, error) {
		if e, ok := c.lookup(homeKey); ok {
			if e.notFound {
				return nil, content.ErrNotFound
			}
			return e.home, nil
		}
		pub, err := c.src.PostsByPublication(ctx, c.host, c.firstPage)
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				c.store(homeKey, cacheEntry{notFound: true})
				return nil, err
			}
			var snap content.Publication
			if c.restore(homeKey, &snap, err) {
				return &snap, nil
			}
			return nil, err
		}
		c.store(homeKey, cacheEntry{home: pub})
		c.save(homeKey, pub)
		return pub, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*content.Publication), nil
}

// Post returns a single post and the publication it belongs to.
func (c *PageCache) Post(ctx context.Context, slug string) (*content.Publication, *content.Post, error) {
	key := postKey(slug)
	if e, ok := c.lookup(key); ok {
		if e.notFound {
			return nil, nil, content.ErrNotFound
		}
		return e.post.Publication, e.post.Post, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if e, ok := c.lookup(key); ok {
			if e.notFound {
				return nil, content.ErrNotFound
			}
			return e.post, nil
		}
		pub, post, err := c.src.SinglePost(ctx, c.host, slug)
		if err != nil {
			if errors.Is(err, content.ErrNotFound) {
				c.store(key, cacheEntry{notFound: true})
				return nil, err
			}
			var snap postEntry
			if c.restore(key, &snap, err) && snap.Post != nil {
				return snap, nil
			}
			return nil, err
		}
		entry := postEntry{Publication: pub, Post: post}
		c.store(key, cacheEntry{post: entry})
		c.save(key, entry)
		return entry, nil
	})
	if err != nil {
		return nil, nil, err
	}
	entry := v.(postEntry)
	return entry.Publication, entry.Post, nil
}
func (c *PageCache) save(key string, v interface{}) {
	if c.Snapshots == nil {
		return
	}
	if err := c.Snapshots.Save(key, v); err != nil && c.Logger != nil {
		c.Logger.Errorf("cache: save snapshot %s: %v", key, err)
	}
}

// restore loads the snapshot for key after fetchErr. The snapshot is not put
// in the cache, so the next request tries the API again.
func (c *PageCache) restore(key string, v interface{}, fetchErr error) bool {
	if c.Snapshots == nil {
		return false
	}
	savedAt, err := c.Snapshots.Load(key, v)
	if err != nil {
		return false
	}
	if c.Logger != nil {
		c.Logger.Warnf("cache: %s: serving snapshot from %s: %v", key, savedAt.Format(time.RFC3339), fetchErr)
	}
	return true
}
