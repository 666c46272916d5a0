package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/farm"
	"github.com/i474232898/cropple-dashboard/internal/resource"
)

// ErrUnknownResource is returned by Lookup for names other than the four cached resources.
var ErrUnknownResource = errors.New("unknown resource")

// Prefetcher warms the shared cache store ahead of a dashboard being mounted.
type Prefetcher struct {
	deps Deps
	log  *zap.Logger
}

// NewPrefetcher creates a Prefetcher that writes into deps.Store.
func NewPrefetcher(deps Deps) *Prefetcher {
	return &Prefetcher{deps: deps, log: deps.logger()}
}

// Prefetch loads weather, crops, tasks and satellite for farmID in parallel. Entries
// that are still fresh in the store are not fetched again. Every resource is attempted;
// the returned error joins all failures.
func (pf *Prefetcher) Prefetch(ctx context.Context, farmID string) error {
	if farmID == "" {
		return farm.ErrMissingFarmID
	}
	res := newResources(farmID, pf.deps)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, r := range res.all() {
		wg.Add(1)
		go func(r refresher) {
			defer wg.Done()
			if err := r.Load(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	if len(errs) > 0 {
		pf.log.Warn("prefetch incomplete", zap.String("farmId", farmID), zap.Int("failed", len(errs)))
		return errors.Join(errs...)
	}
	pf.log.Debug("prefetch complete", zap.String("farmId", farmID))
	return nil
}

// Lookup loads a single cached resource for farmID and returns its state.
func (pf *Prefetcher) Lookup(ctx context.Context, farmID string, name Key) (any, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	res := newResources(farmID, pf.deps)
	switch name {
	case KeyWeather:
		return load(ctx, res.weather)
	case KeyCrops:
		return load(ctx, res.crops)
	case KeyTasks:
		return load(ctx, res.tasks)
	case KeySatellite:
		return load(ctx, res.satellite)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, name)
}

// load returns the state even when the fetch failed; the failure is in State.Error.
func load[T any](ctx context.Context, r *resource.Resource[T]) (resource.State[T], error) {
	err := r.Load(ctx)
	if errors.Is(err, farm.ErrMissingFarmID) {
		return resource.State[T]{}, err
	}
	return r.State(), nil
}
