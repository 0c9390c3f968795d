package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
)

// Logger is the subset of the echo/gommon logger the registry writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
}

type view struct {
	agg      *Aggregator
	lastSeen time.Time
}

// Registry keeps the aggregators of open views, keyed by view ID.
type Registry struct {
	mu       sync.Mutex
	views    map[string]*view
	idle     time.Duration
	maxViews int
	now      func() time.Time
	logger   Logger
}

// NewRegistry creates a Registry that forgets views idle for longer than idle
// and holds at most maxViews views. maxViews <= 0 means no limit.
func NewRegistry(idle time.Duration, maxViews int) *Registry {
	return &Registry{
		views:    make(map[string]*view),
		idle:     idle,
		maxViews: maxViews,
		now:      time.Now,
		logger:   log.New("feed"),
	}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(l Logger) {
	r.logger = l
}

// Open registers agg and returns its view ID. When the registry is full the
// least recently used view is dropped.
func (r *Registry) Open(agg *Aggregator) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxViews > 0 && len(r.views) >= r.maxViews {
		r.evictOldest()
	}
	r.views[id] = &view{agg: agg, lastSeen: r.now()}
	return id
}

func (r *Registry) evictOldest() {
	var oldest string
	var seen time.Time
	for id, v := range r.views {
		if oldest == "" || v.lastSeen.Before(seen) {
			oldest, seen = id, v.lastSeen
		}
	}
	if oldest != "" {
		delete(r.views, oldest)
		r.logger.Debugf("feed: registry full, evicted view %s", oldest)
	}
}

// Get returns the aggregator of a view and marks the view as active.
func (r *Registry) Get(id string) (*Aggregator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, false
	}
	v.lastSeen = r.now()
	return v.agg, true
}

// Close discards a view.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep discards views that have been idle since before now-idle and returns
// how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, v := range r.views {
		if v.lastSeen.Before(cutoff) {
			delete(r.views, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Debugf("feed: evicted %d idle views, %d open", removed, len(r.views))
	}
	return removed
}

// StartJanitor sweeps idle views every interval until the returned func is called.
func (r *Registry) StartJanitor(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				r.Sweep(r.now())
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
