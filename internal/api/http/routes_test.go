package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/cropple-dashboard/internal/cache"
	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/scheduler"
	"github.com/i474232898/cropple-dashboard/internal/store"
	"github.com/i474232898/cropple-dashboard/internal/upstream"
)

// fakeUpstream serves the same-origin API routes with fixed payloads.
type fakeUpstream struct {
	weatherHits int32
	regional    int32
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/weather/current":
		atomic.AddInt32(&f.weatherHits, 1)
		io.WriteString(w, `{"temp":72,"alerts":[{"id":"w1","type":"frost","priority":2},{"id":"w2","type":"wind","priority":7}]}`)
	case "/api/crops":
		io.WriteString(w, `[{"id":"c1"}]`)
	case "/api/tasks":
		io.WriteString(w, `[]`)
	case "/api/satellite/latest":
		io.WriteString(w, `{"ndvi":0.8}`)
	case "/api/nba/recommendations":
		w.WriteHeader(http.StatusInternalServerError)
	case "/api/crop-health/disease-pest-analysis":
		io.WriteString(w, `{"harvestAlerts":[{"id":"h1","type":"pest","priority":4},{"id":"h2","type":"harvest","priority":9}]}`)
	case "/api/satellite/queue":
		io.WriteString(w, `{"pending":2}`)
	case "/api/financial/budget":
		w.WriteHeader(http.StatusNotFound)
	case "/api/farms/regional-comparison":
		atomic.AddInt32(&f.regional, 1)
		io.WriteString(w, `{"percentile":70}`)
	default:
		http.NotFound(w, r)
	}
}

type testEnv struct {
	app      *fiber.App
	upstream *fakeUpstream
	archive  *store.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	up := &fakeUpstream{}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	client := upstream.NewClient(upstream.Config{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	archive := store.NewMemoryStore(10, 0)
	deps := dashboard.Deps{
		Source:   client,
		Store:    cache.NewMemoryStore(),
		CacheTTL: time.Minute,
		Archive:  archive,
	}

	sched := scheduler.New(nil)
	sched.Start()
	reg := dashboard.NewRegistry(deps, sched, time.Hour, 5*time.Second)
	t.Cleanup(func() {
		reg.Close()
		sched.Stop()
	})

	app := NewApp(Deps{
		Registry:   reg,
		Prefetcher: dashboard.NewPrefetcher(deps),
		Archive:    archive,
	})
	return &testEnv{app: app, upstream: up, archive: archive}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestMountAggregatesDashboard(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/farms/farm-123/mount", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	raw := decode[map[string]json.RawMessage](t, resp)

	for _, k := range []string{"weather", "crops", "tasks", "satellite", "recommendations",
		"regionalData", "harvestAlerts", "queueStatus", "budgetData"} {
		assert.Contains(t, raw, k)
	}
	assert.JSONEq(t, `[{"id":"c1"}]`, string(raw["crops"]))
	assert.JSONEq(t, `[]`, string(raw["tasks"]))
	assert.JSONEq(t, `[]`, string(raw["recommendations"]), "500 from recommendations degrades to empty")
	assert.JSONEq(t, `null`, string(raw["error"]))
	assert.JSONEq(t, `false`, string(raw["loading"]))
	assert.JSONEq(t, `null`, string(raw["budgetData"]))
	assert.JSONEq(t, `null`, string(raw["regionalData"]), "no coordinates, no regional comparison")
	assert.JSONEq(t, `{"pending":2}`, string(raw["queueStatus"]))

	var weather struct{ Temp float64 }
	require.NoError(t, json.Unmarshal(raw["weather"], &weather))
	assert.Equal(t, 72.0, weather.Temp)
	var sat struct{ NDVI float64 }
	require.NoError(t, json.Unmarshal(raw["satellite"], &sat))
	assert.Equal(t, 0.8, sat.NDVI)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-123/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[dashboard.Data](t, resp)
	assert.Equal(t, "farm-123", d.FarmID)
	assert.NotNil(t, d.LastUpdated)

	latest, err := env.archive.GetLatest("farm-123")
	require.NoError(t, err)
	assert.Equal(t, 72.0, latest.Data.Weather.Temp)
}

func TestMountWithCoordinatesFetchesRegional(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", map[string]any{
		"name": "North", "latitude": 41.6, "longitude": -93.6,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	d := decode[dashboard.Data](t, resp)
	assert.JSONEq(t, `{"percentile":70}`, string(d.RegionalData))
	assert.EqualValues(t, 1, atomic.LoadInt32(&env.upstream.regional))
}

func TestMountValidation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", map[string]any{"latitude": 120, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", map[string]any{"latitude": 12})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["error"])
	assert.Contains(t, body["message"], "together")
}

func TestNotMounted(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{
		"/api/v1/farms/ghost/dashboard",
		"/api/v1/farms/ghost/alerts",
		"/api/v1/farms/ghost/recommendations",
	} {
		resp := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, target)
	}
	resp := env.do(t, http.MethodDelete, "/api/v1/farms/ghost/mount", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefreshUpdateAndUnmount(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", nil).StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&env.upstream.weatherHits))

	resp := env.do(t, http.MethodPost, "/api/v1/farms/farm-1/dashboard/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, atomic.LoadInt32(&env.upstream.weatherHits))

	resp = env.do(t, http.MethodPut, "/api/v1/farms/farm-1/dashboard/weather", map[string]any{"temp": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&env.upstream.weatherHits))
	assert.Equal(t, 72.0, decode[dashboard.Data](t, resp).Weather.Temp)

	resp = env.do(t, http.MethodPut, "/api/v1/farms/farm-1/dashboard/budgetData", map[string]any{"total": 5000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"total":5000}`, string(decode[dashboard.Data](t, resp).BudgetData))

	resp = env.do(t, http.MethodPut, "/api/v1/farms/farm-1/dashboard/soil", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v1/farms/farm-1/mount", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/dashboard", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRelocate(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", nil).StatusCode)

	resp := env.do(t, http.MethodPut, "/api/v1/farms/farm-1/location", map[string]any{"latitude": 10})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/v1/farms/farm-1/location", map[string]any{"latitude": 10, "longitude": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[dashboard.Data](t, resp)
	assert.JSONEq(t, `{"percentile":70}`, string(d.RegionalData))
}

func TestAlertsAndRecommendationsViews(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", nil).StatusCode)

	resp := env.do(t, http.MethodGet, "/api/v1/farms/farm-1/alerts?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	alerts := decode[dashboard.Alerts](t, resp)
	require.Len(t, alerts.Weather, 1)
	assert.Equal(t, "w2", alerts.Weather[0].ID)
	require.Len(t, alerts.Harvest, 1)
	assert.Equal(t, "h2", alerts.Harvest[0].ID)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/alerts?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/recommendations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"recommendations":[]}`, string(decode[json.RawMessage](t, resp)))
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/v1/farms/farm-1/mount", nil).StatusCode)

	from := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	to := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	resp := env.do(t, http.MethodGet, "/api/v1/farms/farm-1/dashboard/history?from="+from+"&to="+to, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		FarmID    string           `json:"farmId"`
		Snapshots []store.Snapshot `json:"snapshots"`
	}](t, resp)
	assert.Equal(t, "farm-1", body.FarmID)
	assert.Len(t, body.Snapshots, 1)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/dashboard/history?from="+to+"&to="+from, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/dashboard/history?from=0&to=1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-1/dashboard/history?from=yesterday&to=1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrefetchAndResources(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/farms/farm-9/prefetch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&env.upstream.weatherHits))

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-9/resources/weather", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&env.upstream.weatherHits), "served from the warmed cache")
	state := decode[map[string]json.RawMessage](t, resp)
	assert.JSONEq(t, `false`, string(state["loading"]))
	assert.JSONEq(t, `null`, string(state["error"]))

	resp = env.do(t, http.MethodGet, "/api/v1/farms/farm-9/resources/budgetData", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMLInference(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/v1/ml-inference", map[string]any{
		"action":     "optimize_irrigation",
		"field_data": map[string]any{"soil_moisture": 0.3},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["timestamp"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "moderate", data["urgency"])

	resp = env.do(t, http.MethodPost, "/api/v1/ml-inference", map[string]any{"action": "analyze_stress",
		"satellite_data": []map[string]any{{"ndvi": 0.5, "date": "2024-06-01"}}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode[map[string]any](t, resp)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "at least 3 observations")

	resp = env.do(t, http.MethodPost, "/api/v1/ml-inference", map[string]any{"action": "dance"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}
