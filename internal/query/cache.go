// Package query caches server reads by key. Fresh entries are served without
// a network call, concurrent reads of one key share a single fetch, and
// mutations invalidate the keys they touch.
package query

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultStaleTime is how long fetched data counts as fresh.
const DefaultStaleTime = 60 * time.Second

// State is what a view needs to render a keyed resource.
type State struct {
	Data      any
	Loading   bool
	Err       error
	UpdatedAt time.Time
}

type entry struct {
	data          any
	hasData       bool
	updatedAt     time.Time
	invalidatedAt time.Time
	err           error
	inflight      int
}

// Options configures a Client.
type Options struct {
	StaleTime time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// Client is the keyed server cache. It is safe for concurrent use.
type Client struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	staleTime time.Duration
	now       func() time.Time
	logger    *slog.Logger
	// generation is bumped by Remove and Reset. Fetches that started under
	// an older generation hand their data to the caller but never store it.
	generation uint64
}

// New returns a Client. Zero options fall back to DefaultStaleTime, the wall
// clock and a discarding logger.
func New(opts Options) *Client {
	stale := opts.StaleTime
	if stale <= 0 {
		stale = DefaultStaleTime
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		entries:   map[string]*entry{},
		staleTime: stale,
		now:       now,
		logger:    logger,
	}
}

// Fetch returns the cached value for key when fresh, otherwise runs fetch.
func Fetch[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	return load(ctx, c, key, false, fetch)
}

// Refetch runs fetch regardless of freshness.
func Refetch[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	return load(ctx, c, key, true, fetch)
}

// Mutate runs fn and then invalidates every prefix, whether or not fn
// succeeded, so the next read comes from the server.
func Mutate[T any](ctx context.Context, c *Client, fn func(context.Context) (T, error), invalidate ...string) (T, error) {
	value, err := fn(ctx)
	for _, prefix := range invalidate {
		c.Invalidate(prefix)
	}
	return value, err
}

// Peek returns the cached value for key without fetching.
func Peek[T any](c *Client, key string) (T, bool) {
	var zero T
	state := c.State(key)
	if state.Data == nil {
		return zero, false
	}
	value, ok := state.Data.(T)
	return value, ok
}

func load[T any](ctx context.Context, c *Client, key string, force bool, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if !force {
		if data, ok := c.fresh(key); ok {
			if value, ok := data.(T); ok {
				return value, nil
			}
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return c.run(context.WithoutCancel(ctx), key, func(ctx context.Context) (any, error) {
			return fetch(ctx)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query: key %q holds %T", key, res.Val)
		}
		return value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (c *Client) run(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	started := c.now()
	c.mu.Lock()
	e := c.entryLocked(key)
	e.inflight++
	generation := c.generation
	c.mu.Unlock()

	data, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	e.inflight--
	if c.generation != generation || c.entries[key] != e {
		c.logger.Debug("query: dropped result of removed key", "key", key)
		return data, err
	}
	if err != nil {
		e.err = err
		c.logger.Debug("query: fetch failed", "key", key, "err", err)
		return nil, err
	}
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = c.now()
	if e.invalidatedAt.After(started) {
		// Invalidated mid-flight: keep the data for display but treat it as stale.
		e.updatedAt = time.Time{}
	}
	c.logger.Debug("query: fetched", "key", key, "duration", c.now().Sub(started))
	return data, nil
}

func (c *Client) entryLocked(key string) *entry {
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	return e
}

func (c *Client) fresh(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !e.hasData || e.updatedAt.IsZero() {
		return nil, false
	}
	if c.now().Sub(e.updatedAt) >= c.staleTime {
		return nil, false
	}
	return e.data, true
}

// State reports the cached data, loading flag and last error for key.
func (c *Client) State(key string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return State{}
	}
	state := State{Loading: e.inflight > 0, Err: e.err, UpdatedAt: e.updatedAt}
	if e.hasData {
		state.Data = e.data
	}
	return state
}

// Set seeds key with data fetched elsewhere.
func (c *Client) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = c.now()
}

// Invalidate marks every key starting with prefix as stale. Data is kept so
// views can keep showing it while the refetch runs.
func (c *Client) Invalidate(prefix string) {
	c.mu.Lock()
	now := c.now()
	var keys []string
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			e.updatedAt = time.Time{}
			e.invalidatedAt = now
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()
	for _, key := range keys {
		c.group.Forget(key)
	}
	if len(keys) > 0 {
		c.logger.Debug("query: invalidated", "prefix", prefix, "keys", len(keys))
	}
}

// Remove drops every key starting with prefix.
func (c *Client) Remove(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			c.group.Forget(key)
		}
	}
}

// Reset empties the cache. Called when the session ends.
func (c *Client) Reset() {
	c.Remove("")
}
