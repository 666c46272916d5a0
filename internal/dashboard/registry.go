package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/farm"
	"github.com/i474232898/cropple-dashboard/internal/scheduler"
)

// ErrNotMounted is returned for farms without a mounted dashboard.
var ErrNotMounted = errors.New("dashboard not mounted for farm")

// Registry owns the mounted Providers, one per farm, and their refresh jobs.
type Registry struct {
	deps         Deps
	sched        *scheduler.Scheduler
	interval     time.Duration
	cycleTimeout time.Duration
	log          *zap.Logger

	mu        sync.Mutex
	providers map[string]*Provider
}

// NewRegistry creates a Registry. interval <= 0 uses scheduler.DefaultInterval and
// cycleTimeout <= 0 bounds a scheduled cycle by the interval.
func NewRegistry(deps Deps, sched *scheduler.Scheduler, interval, cycleTimeout time.Duration) *Registry {
	if interval <= 0 {
		interval = scheduler.DefaultInterval
	}
	if cycleTimeout <= 0 {
		cycleTimeout = interval
	}
	return &Registry{
		deps:         deps,
		sched:        sched,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		log:          deps.logger(),
		providers:    make(map[string]*Provider),
	}
}

func jobTag(farmID string) string {
	return "dashboard:" + farmID
}

// Mount starts a dashboard for f: one immediate FetchAll, then one every interval.
// Mounting an already mounted farm returns the existing provider.
func (r *Registry) Mount(ctx context.Context, f farm.Farm) (*Provider, error) {
	if f.ID == "" {
		return nil, farm.ErrMissingFarmID
	}

	r.mu.Lock()
	if p, ok := r.providers[f.ID]; ok {
		r.mu.Unlock()
		return p, nil
	}
	p := NewProvider(f, r.deps)
	err := r.sched.Every(jobTag(f.ID), r.interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.cycleTimeout)
		defer cancel()
		p.FetchAll(ctx)
	})
	if err != nil {
		r.mu.Unlock()
		p.Close()
		return nil, fmt.Errorf("schedule refresh for %s: %w", f.ID, err)
	}
	r.providers[f.ID] = p
	r.mu.Unlock()

	r.log.Info("dashboard mounted", zap.String("farmId", f.ID), zap.Duration("interval", r.interval))
	p.FetchAll(ctx)
	return p, nil
}

// Unmount stops the refresh job and closes the provider. It reports whether farmID
// was mounted.
func (r *Registry) Unmount(farmID string) bool {
	r.mu.Lock()
	p, ok := r.providers[farmID]
	delete(r.providers, farmID)
	r.mu.Unlock()
	if !ok {
		return false
	}

	if err := r.sched.Cancel(jobTag(farmID)); err != nil {
		r.log.Warn("cancel refresh job failed", zap.String("farmId", farmID), zap.Error(err))
	}
	p.Close()
	r.log.Info("dashboard unmounted", zap.String("farmId", farmID))
	return true
}

// Get returns the mounted provider for farmID.
func (r *Registry) Get(farmID string) (*Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[farmID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMounted, farmID)
	}
	return p, nil
}

// Relocate updates the coordinates of a mounted farm and refetches its dashboard.
func (r *Registry) Relocate(ctx context.Context, farmID string, lat, lon float64) (*Provider, error) {
	p, err := r.Get(farmID)
	if err != nil {
		return nil, err
	}
	f := p.Farm()
	f.Latitude, f.Longitude = &lat, &lon
	if err := p.SetFarm(ctx, f); err != nil {
		return nil, err
	}
	return p, nil
}

// Mounted returns the ids of all mounted farms.
func (r *Registry) Mounted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

// Close unmounts every farm.
func (r *Registry) Close() {
	for _, id := range r.Mounted() {
		r.Unmount(id)
	}
}
