package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/i474232898/cropple-dashboard/internal/events"
	"github.com/i474232898/cropple-dashboard/internal/farm"
)

var errTransport = errors.New("connection refused")

// fakeSource answers from fixed payloads and counts calls per endpoint.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int

	weatherErr   error
	cropsErr     error
	tasksErr     error
	satelliteErr error
	budgetErr    error

	recs      []farm.Recommendation
	recsLimit int
	alerts    []farm.HarvestAlert
	regional  json.RawMessage
	latLon    [2]float64

	// gates block Weather and Budget for the listed farm until closed; started
	// receives the farm id once Weather is blocked.
	gates   map[string]chan struct{}
	started chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:    make(map[string]int),
		recs:     []farm.Recommendation{{ID: "r1", Title: "Irrigate", Urgency: 8, ROI: 6, Feasibility: 7}},
		alerts:   []farm.HarvestAlert{{ID: "h1", Type: "pest", Priority: 2}},
		regional: json.RawMessage(`{"rank":3}`),
		gates:    make(map[string]chan struct{}),
	}
}

func (f *fakeSource) hit(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeSource) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) setErr(dst *error, err error) {
	f.mu.Lock()
	*dst = err
	f.mu.Unlock()
}

func (f *fakeSource) errOf(e *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *e
}

func (f *fakeSource) wait(ctx context.Context, endpoint, farmID string) error {
	f.mu.Lock()
	gate := f.gates[farmID]
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	if f.started != nil && endpoint == "weather" {
		select {
		case f.started <- farmID:
		default:
		}
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) Weather(ctx context.Context, farmID string) (farm.Weather, error) {
	f.hit("weather")
	if err := f.wait(ctx, "weather", farmID); err != nil {
		return farm.Weather{}, err
	}
	if err := f.errOf(&f.weatherErr); err != nil {
		return farm.Weather{}, err
	}
	return farm.Weather{
		Temp:        72,
		Description: farmID,
		Alerts: []farm.WeatherAlert{
			{ID: "w1", Type: "frost", Priority: 1},
			{ID: "w2", Type: "storm", Priority: 3},
		},
	}, nil
}

func (f *fakeSource) Crops(ctx context.Context, farmID string) ([]farm.Crop, error) {
	f.hit("crops")
	if err := f.errOf(&f.cropsErr); err != nil {
		return nil, err
	}
	return []farm.Crop{{ID: "c1", FieldID: farmID}}, nil
}

func (f *fakeSource) Tasks(ctx context.Context, farmID string) ([]farm.Task, error) {
	f.hit("tasks")
	if err := f.errOf(&f.tasksErr); err != nil {
		return nil, err
	}
	return []farm.Task{}, nil
}

func (f *fakeSource) Satellite(ctx context.Context, farmID string) (farm.Satellite, error) {
	f.hit("satellite")
	if err := f.errOf(&f.satelliteErr); err != nil {
		return farm.Satellite{}, err
	}
	return farm.Satellite{NDVI: 0.8}, nil
}

func (f *fakeSource) Recommendations(ctx context.Context, farmID string, limit int) ([]farm.Recommendation, error) {
	f.hit("recommendations")
	f.mu.Lock()
	f.recsLimit = limit
	recs := f.recs
	f.mu.Unlock()
	return recs, nil
}

func (f *fakeSource) HarvestAlerts(ctx context.Context, farmID string) ([]farm.HarvestAlert, error) {
	f.hit("harvestAlerts")
	return f.alerts, nil
}

func (f *fakeSource) QueueStatus(ctx context.Context) (json.RawMessage, error) {
	f.hit("queueStatus")
	return json.RawMessage(`{"pending":0}`), nil
}

func (f *fakeSource) Budget(ctx context.Context, farmID string) (json.RawMessage, error) {
	f.hit("budget")
	if err := f.wait(ctx, "budget", farmID); err != nil {
		return nil, err
	}
	if err := f.errOf(&f.budgetErr); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"farm":"` + farmID + `"}`), nil
}

func (f *fakeSource) RegionalComparison(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	f.hit("regional")
	f.mu.Lock()
	f.latLon = [2]float64{lat, lon}
	f.mu.Unlock()
	return f.regional, nil
}

type recordingArchive struct {
	mu    sync.Mutex
	snaps []Data
}

func (a *recordingArchive) SaveSnapshot(farmID string, d Data) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, d)
	return nil
}

func (a *recordingArchive) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.snaps)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.DashboardUpdated
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.DashboardUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func coords(lat, lon float64) (*float64, *float64) {
	return &lat, &lon
}
