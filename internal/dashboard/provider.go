// Package dashboard aggregates the per-farm resources and ad hoc feeds into one
// DashboardData view and keeps it refreshed.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/cropple-dashboard/internal/cache"
	"github.com/i474232898/cropple-dashboard/internal/events"
	"github.com/i474232898/cropple-dashboard/internal/farm"
	"github.com/i474232898/cropple-dashboard/internal/resource"
)

// DefaultMaxRecommendations is the maxRecommendations sent upstream when unset.
const DefaultMaxRecommendations = 5

// Source is the upstream API. *upstream.Client implements it.
type Source interface {
	Weather(ctx context.Context, farmID string) (farm.Weather, error)
	Crops(ctx context.Context, farmID string) ([]farm.Crop, error)
	Tasks(ctx context.Context, farmID string) ([]farm.Task, error)
	Satellite(ctx context.Context, farmID string) (farm.Satellite, error)
	Recommendations(ctx context.Context, farmID string, limit int) ([]farm.Recommendation, error)
	HarvestAlerts(ctx context.Context, farmID string) ([]farm.HarvestAlert, error)
	QueueStatus(ctx context.Context) (json.RawMessage, error)
	Budget(ctx context.Context, farmID string) (json.RawMessage, error)
	RegionalComparison(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

// Archiver receives a snapshot after every completed cycle.
type Archiver interface {
	SaveSnapshot(farmID string, data Data) error
}

// Deps are shared by every Provider of a Registry.
type Deps struct {
	Source             Source
	Store              cache.Store
	CacheTTL           time.Duration
	MaxRecommendations int
	Archive            Archiver
	Publisher          events.Publisher
	Logger             *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// resources are the four cached resources of one farm identity.
type resources struct {
	weather   *resource.Resource[farm.Weather]
	crops     *resource.Resource[[]farm.Crop]
	tasks     *resource.Resource[[]farm.Task]
	satellite *resource.Resource[farm.Satellite]
}

func newResources(farmID string, d Deps) resources {
	opts := resource.Options{Store: d.Store, TTL: d.CacheTTL, Logger: d.logger()}
	return resources{
		weather:   resource.New[farm.Weather](string(KeyWeather), farmID, d.Source.Weather, opts),
		crops:     resource.New[[]farm.Crop](string(KeyCrops), farmID, d.Source.Crops, opts),
		tasks:     resource.New[[]farm.Task](string(KeyTasks), farmID, d.Source.Tasks, opts),
		satellite: resource.New[farm.Satellite](string(KeySatellite), farmID, d.Source.Satellite, opts),
	}
}

// refresher is the untyped view of a resource used for fan-out.
type refresher interface {
	Name() string
	Refetch(ctx context.Context) error
	Load(ctx context.Context) error
	Invalidate(ctx context.Context)
}

func (r resources) all() []refresher {
	return []refresher{r.weather, r.crops, r.tasks, r.satellite}
}

func (r resources) byKey(k Key) refresher {
	switch k {
	case KeyWeather:
		return r.weather
	case KeyCrops:
		return r.crops
	case KeyTasks:
		return r.tasks
	case KeySatellite:
		return r.satellite
	}
	return nil
}

// Provider aggregates one farm's dashboard. It is safe for concurrent use.
type Provider struct {
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	life   context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	farm       farm.Farm
	gen        uint64
	res        resources
	extra      additional
	lastChange time.Time
	closed     bool
}

// NewProvider creates a Provider for f. Nothing is fetched until FetchAll.
func NewProvider(f farm.Farm, deps Deps) *Provider {
	if deps.MaxRecommendations <= 0 {
		deps.MaxRecommendations = DefaultMaxRecommendations
	}
	life, cancel := context.WithCancel(context.Background())
	return &Provider{
		deps:   deps,
		log:    deps.logger(),
		now:    time.Now,
		life:   life,
		cancel: cancel,
		farm:   f,
		res:    newResources(f.ID, deps),
		extra:  emptyAdditional(),
	}
}

// Farm returns the current farm identity.
func (p *Provider) Farm() farm.Farm {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.farm
}

// bind derives a context that is also cancelled when the provider is closed.
func (p *Provider) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// FetchAll refreshes the four cached resources and the ad hoc feeds concurrently.
// Resource failures are recorded per resource; a failure of the ad hoc batch keeps
// the previous additional data. It is a no-op once the provider is closed.
func (p *Provider) FetchAll(ctx context.Context) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	gen, f, res := p.gen, p.farm, p.res
	p.mu.RUnlock()

	if f.ID == "" {
		p.log.Warn("fetch skipped", zap.Error(farm.ErrMissingFarmID))
		return
	}

	ctx, cancel := p.bind(ctx)
	defer cancel()

	cycleID := uuid.NewString()
	log := p.log.With(zap.String("farmId", f.ID), zap.String("cycleId", cycleID))
	start := p.now()
	log.Debug("dashboard cycle started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.refetchResources(ctx, res, log)
	}()
	go func() {
		defer wg.Done()
		p.fetchAdditional(ctx, gen, f, log)
	}()
	wg.Wait()

	p.mu.Lock()
	current := p.gen == gen && !p.closed
	if current {
		p.lastChange = p.now()
	}
	p.mu.Unlock()
	if !current {
		log.Debug("dashboard cycle discarded")
		return
	}

	log.Info("dashboard cycle finished", zap.Duration("took", p.now().Sub(start)))
	p.afterCycle(ctx, cycleID, log)
}

// refetchResources waits for every resource to settle.
func (p *Provider) refetchResources(ctx context.Context, res resources, log *zap.Logger) {
	var wg sync.WaitGroup
	for _, r := range res.all() {
		wg.Add(1)
		go func(r refresher) {
			defer wg.Done()
			if err := r.Refetch(ctx); err != nil {
				log.Debug("resource settled with error", zap.String("resource", r.Name()), zap.Error(err))
			}
		}(r)
	}
	wg.Wait()
}

// fetchAdditional loads the ad hoc feeds; the first failure aborts the batch.
func (p *Provider) fetchAdditional(ctx context.Context, gen uint64, f farm.Farm, log *zap.Logger) {
	src := p.deps.Source
	next := additional{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := src.Recommendations(gctx, f.ID, p.deps.MaxRecommendations)
		if err != nil {
			return fmt.Errorf("recommendations: %w", err)
		}
		next.recommendations = recs
		return nil
	})
	g.Go(func() error {
		alerts, err := src.HarvestAlerts(gctx, f.ID)
		if err != nil {
			return fmt.Errorf("harvest alerts: %w", err)
		}
		next.harvestAlerts = alerts
		return nil
	})
	g.Go(func() error {
		q, err := src.QueueStatus(gctx)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}
		next.queueStatus = raw(q)
		return nil
	})
	g.Go(func() error {
		b, err := src.Budget(gctx, f.ID)
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		next.budgetData = raw(b)
		return nil
	})
	if f.HasCoordinates() {
		g.Go(func() error {
			rc, err := src.RegionalComparison(gctx, *f.Latitude, *f.Longitude)
			if err != nil {
				return fmt.Errorf("regional comparison: %w", err)
			}
			next.regionalData = raw(rc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("failed to fetch additional dashboard data", zap.Error(err))
		return
	}
	if next.recommendations == nil {
		next.recommendations = []farm.Recommendation{}
	}
	if next.harvestAlerts == nil {
		next.harvestAlerts = []farm.HarvestAlert{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.closed {
		return
	}
	p.extra = next
}

func (p *Provider) afterCycle(ctx context.Context, cycleID string, log *zap.Logger) {
	if p.deps.Archive == nil && p.deps.Publisher == nil {
		return
	}
	d := p.Data()
	if p.deps.Archive != nil {
		if err := p.deps.Archive.SaveSnapshot(d.FarmID, d); err != nil {
			log.Warn("snapshot archive failed", zap.Error(err))
		}
	}
	if p.deps.Publisher != nil {
		ev := events.DashboardUpdated{
			FarmID:      d.FarmID,
			CycleID:     cycleID,
			LastUpdated: d.LastUpdated,
			Error:       d.Error,
		}
		if err := p.deps.Publisher.Publish(ctx, ev); err != nil {
			log.Warn("dashboard event publish failed", zap.Error(err))
		}
	}
}

// Data returns the merged view.
func (p *Provider) Data() Data {
	p.mu.RLock()
	f, res, extra, last := p.farm, p.res, p.extra, p.lastChange
	p.mu.RUnlock()

	w, c, t, s := res.weather.State(), res.crops.State(), res.tasks.State(), res.satellite.State()

	d := Data{
		FarmID:          f.ID,
		Weather:         w.Data,
		Satellite:       s.Data,
		Recommendations: extra.recommendations,
		RegionalData:    extra.regionalData,
		HarvestAlerts:   extra.harvestAlerts,
		QueueStatus:     extra.queueStatus,
		BudgetData:      extra.budgetData,
	}
	if c.Data != nil {
		d.Crops = *c.Data
	}
	if t.Data != nil {
		d.Tasks = *t.Data
	}

	d.Loading = w.Loading || c.Loading || t.Loading || s.Loading
	d.Error = firstError(w.Error, c.Error, t.Error, s.Error)
	if !d.Loading && !last.IsZero() {
		ts := last
		d.LastUpdated = &ts
	}
	return d
}

// UpdateData refreshes or replaces one slot. For the four cached keys the value is
// ignored and the resource is invalidated and refetched; its failure shows up in
// Data().Error. Any other key is overwritten with value.
func (p *Provider) UpdateData(ctx context.Context, key Key, value json.RawMessage) error {
	p.mu.RLock()
	closed, gen, res, farmID := p.closed, p.gen, p.res, p.farm.ID
	p.mu.RUnlock()
	if closed {
		return nil
	}

	if key.Cached() {
		ctx, cancel := p.bind(ctx)
		defer cancel()

		r := res.byKey(key)
		r.Invalidate(ctx)
		if err := r.Refetch(ctx); err != nil {
			p.log.Warn("update refetch failed", zap.String("farmId", farmID), zap.String("resource", r.Name()), zap.Error(err))
		}
		p.touch(gen)
		return nil
	}

	next, err := p.decodeSlot(key, value)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen || p.closed {
		return nil
	}
	next(&p.extra)
	p.lastChange = p.now()
	return nil
}

func (p *Provider) decodeSlot(key Key, value json.RawMessage) (func(*additional), error) {
	switch key {
	case KeyRecommendations:
		recs := []farm.Recommendation{}
		if err := decodeOptional(value, &recs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return func(a *additional) { a.recommendations = recs }, nil
	case KeyHarvestAlerts:
		alerts := []farm.HarvestAlert{}
		if err := decodeOptional(value, &alerts); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return func(a *additional) { a.harvestAlerts = alerts }, nil
	case KeyRegionalData, KeyQueueStatus, KeyBudgetData:
		if len(value) > 0 && !json.Valid(value) {
			return nil, fmt.Errorf("decode %s: invalid JSON", key)
		}
		v := raw(value)
		return func(a *additional) {
			switch key {
			case KeyRegionalData:
				a.regionalData = v
			case KeyQueueStatus:
				a.queueStatus = v
			default:
				a.budgetData = v
			}
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// decodeOptional leaves out untouched for an empty or null value.
func decodeOptional(value json.RawMessage, out any) error {
	if len(value) == 0 || string(value) == "null" {
		return nil
	}
	return json.Unmarshal(value, out)
}

func (p *Provider) touch(gen uint64) {
	p.mu.Lock()
	if p.gen == gen && !p.closed {
		p.lastChange = p.now()
	}
	p.mu.Unlock()
}

// SetFarm switches the provider to a new farm identity or location and refetches
// everything. Responses still in flight for the previous identity are discarded.
func (p *Provider) SetFarm(ctx context.Context, f farm.Farm) error {
	if f.ID == "" {
		return farm.ErrMissingFarmID
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.farm = f
	p.gen++
	p.res = newResources(f.ID, p.deps)
	p.extra = emptyAdditional()
	p.lastChange = time.Time{}
	p.mu.Unlock()

	p.FetchAll(ctx)
	return nil
}

// Close cancels in-flight requests. Later FetchAll calls do nothing.
func (p *Provider) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}
