// Package resource implements cached per-farm resources: a fetched payload plus its
// loading/error state, backed by a time-bounded cache.Store.
package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/cache"
	"github.com/i474232898/cropple-dashboard/internal/farm"
)

// FetchFunc performs the network request for one farm.
type FetchFunc[T any] func(ctx context.Context, farmID string) (T, error)

// State is a point-in-time view of a resource.
// Loading == true always comes with Error == nil.
type State[T any] struct {
	Data      *T         `json:"data"`
	Loading   bool       `json:"loading"`
	Error     *string    `json:"error"`
	FetchedAt *time.Time `json:"fetchedAt"`
}

// Options configures a Resource. A nil Store disables the shared cache.
type Options struct {
	Store  cache.Store
	TTL    time.Duration
	Logger *zap.Logger
}

// Resource is a cached fetch for one (resource name, farm) pair.
type Resource[T any] struct {
	name   string
	farmID string
	fetch  FetchFunc[T]
	store  cache.Store
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	data      *T
	errMsg    *string
	inflight  int
	fetchedAt time.Time
	stale     bool
}

// New creates a Resource. Nothing is fetched until Refetch or Load is called.
func New[T any](name, farmID string, fetch FetchFunc[T], opts Options) *Resource[T] {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Resource[T]{
		name:   name,
		farmID: farmID,
		fetch:  fetch,
		store:  opts.Store,
		ttl:    opts.TTL,
		log:    log.With(zap.String("resource", name), zap.String("farmId", farmID)),
		now:    time.Now,
	}
}

// Name returns the resource name, e.g. "weather".
func (r *Resource[T]) Name() string { return r.name }

// FarmID returns the farm this resource is bound to.
func (r *Resource[T]) FarmID() string { return r.farmID }

// State returns a snapshot of the current state.
func (r *Resource[T]) State() State[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := State[T]{
		Data:    r.data,
		Loading: r.inflight > 0,
	}
	// A failure from an overlapping refetch stays hidden until the last one settles.
	if !st.Loading {
		st.Error = r.errMsg
	}
	if !r.fetchedAt.IsZero() {
		ts := r.fetchedAt
		st.FetchedAt = &ts
	}
	return st
}

// Refetch issues exactly one request regardless of cache freshness.
// On failure the previous data is kept and Error is set to a generic message.
func (r *Resource[T]) Refetch(ctx context.Context) error {
	if r.farmID == "" {
		return farm.ErrMissingFarmID
	}

	r.mu.Lock()
	r.inflight++
	r.errMsg = nil
	r.mu.Unlock()

	v, err := r.fetch(ctx, r.farmID)

	r.mu.Lock()
	r.inflight--
	if err != nil {
		msg := fmt.Sprintf("Failed to fetch %s data", r.name)
		r.errMsg = &msg
		r.mu.Unlock()
		r.log.Warn("resource fetch failed", zap.Error(err))
		return fmt.Errorf("%s: %w", r.name, err)
	}
	r.data = &v
	r.errMsg = nil
	r.fetchedAt = r.now()
	r.stale = false
	r.mu.Unlock()

	r.writeCache(ctx, v)
	return nil
}

// Invalidate marks the entry stale so the next Load goes to the network.
// It does not fetch.
func (r *Resource[T]) Invalidate(ctx context.Context) {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()

	if r.store == nil || r.farmID == "" {
		return
	}
	if err := r.store.Delete(ctx, cache.ResourceKey(r.name, r.farmID)); err != nil {
		r.log.Warn("cache delete failed", zap.Error(err))
	}
}

// Load serves from memory or the shared cache while fresh, and fetches otherwise.
func (r *Resource[T]) Load(ctx context.Context) error {
	if r.farmID == "" {
		return farm.ErrMissingFarmID
	}

	r.mu.RLock()
	stale := r.stale
	fresh := !stale && r.data != nil && (r.ttl <= 0 || r.now().Sub(r.fetchedAt) < r.ttl)
	r.mu.RUnlock()
	if fresh {
		return nil
	}

	if !stale && r.readCache(ctx) {
		return nil
	}
	return r.Refetch(ctx)
}

func (r *Resource[T]) readCache(ctx context.Context) bool {
	if r.store == nil {
		return false
	}
	e, ok, err := r.store.Get(ctx, cache.ResourceKey(r.name, r.farmID))
	if err != nil {
		r.log.Warn("cache read failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		r.log.Warn("cache entry undecodable", zap.Error(err))
		return false
	}

	r.mu.Lock()
	r.data = &v
	r.errMsg = nil
	r.fetchedAt = e.StoredAt
	r.mu.Unlock()
	r.log.Debug("served from cache")
	return true
}

func (r *Resource[T]) writeCache(ctx context.Context, v T) {
	if r.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		r.log.Warn("cache encode failed", zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, cache.ResourceKey(r.name, r.farmID), raw, r.ttl); err != nil {
		r.log.Warn("cache write failed", zap.Error(err))
	}
}
