package upstream

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/i474232898/cropple-dashboard/internal/farm"
)

func farmQuery(farmID string) url.Values {
	q := url.Values{}
	q.Set("farmId", farmID)
	return q
}

// Weather fetches current conditions for a farm.
func (c *Client) Weather(ctx context.Context, farmID string) (farm.Weather, error) {
	if farmID == "" {
		return farm.Weather{}, farm.ErrMissingFarmID
	}
	var w farm.Weather
	if err := c.getJSON(ctx, EndpointWeather, "/api/weather/current", farmQuery(farmID), &w); err != nil {
		return farm.Weather{}, err
	}
	if w.Condition == "" {
		w.Condition = farm.NormalizeCondition(w.Description)
	}
	return w, nil
}

// Crops fetches the farm's crops.
func (c *Client) Crops(ctx context.Context, farmID string) ([]farm.Crop, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	var crops []farm.Crop
	if err := c.getJSON(ctx, EndpointCrops, "/api/crops", farmQuery(farmID), &crops); err != nil {
		return nil, err
	}
	return crops, nil
}

// Tasks fetches the farm's tasks.
func (c *Client) Tasks(ctx context.Context, farmID string) ([]farm.Task, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	var tasks []farm.Task
	if err := c.getJSON(ctx, EndpointTasks, "/api/tasks", farmQuery(farmID), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Satellite fetches the latest vegetation-index observation.
func (c *Client) Satellite(ctx context.Context, farmID string) (farm.Satellite, error) {
	if farmID == "" {
		return farm.Satellite{}, farm.ErrMissingFarmID
	}
	var s farm.Satellite
	if err := c.getJSON(ctx, EndpointSatellite, "/api/satellite/latest", farmQuery(farmID), &s); err != nil {
		return farm.Satellite{}, err
	}
	return s, nil
}

// The ad hoc endpoints below turn a non-2xx response into an empty default and
// only return transport and decode errors.

// Recommendations fetches up to limit Next Best Action recommendations.
func (c *Client) Recommendations(ctx context.Context, farmID string, limit int) ([]farm.Recommendation, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	q := farmQuery(farmID)
	q.Set("maxRecommendations", strconv.Itoa(limit))

	var payload struct {
		Recommendations []farm.Recommendation `json:"recommendations"`
	}
	err := c.getJSON(ctx, EndpointRecommendations, "/api/nba/recommendations", q, &payload)
	if IsStatusError(err) {
		c.degraded(EndpointRecommendations, farmID, err)
		return []farm.Recommendation{}, nil
	}
	if err != nil {
		return nil, err
	}
	if payload.Recommendations == nil {
		return []farm.Recommendation{}, nil
	}
	return payload.Recommendations, nil
}

// HarvestAlerts fetches disease/pest and harvest alerts.
func (c *Client) HarvestAlerts(ctx context.Context, farmID string) ([]farm.HarvestAlert, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	var payload struct {
		HarvestAlerts []farm.HarvestAlert `json:"harvestAlerts"`
	}
	err := c.getJSON(ctx, EndpointHarvestAlerts, "/api/crop-health/disease-pest-analysis", farmQuery(farmID), &payload)
	if IsStatusError(err) {
		c.degraded(EndpointHarvestAlerts, farmID, err)
		return []farm.HarvestAlert{}, nil
	}
	if err != nil {
		return nil, err
	}
	if payload.HarvestAlerts == nil {
		return []farm.HarvestAlert{}, nil
	}
	return payload.HarvestAlerts, nil
}

// QueueStatus fetches the satellite processing queue status. It is not farm scoped.
func (c *Client) QueueStatus(ctx context.Context) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("action", "status")
	return c.opaque(ctx, EndpointQueueStatus, "/api/satellite/queue", q, "")
}

// Budget fetches the farm's budget snapshot.
func (c *Client) Budget(ctx context.Context, farmID string) (json.RawMessage, error) {
	if farmID == "" {
		return nil, farm.ErrMissingFarmID
	}
	return c.opaque(ctx, EndpointBudget, "/api/financial/budget", farmQuery(farmID), farmID)
}

// RegionalComparison fetches peer-farm benchmarks around a coordinate.
func (c *Client) RegionalComparison(ctx context.Context, lat, lon float64) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.opaque(ctx, EndpointRegional, "/api/farms/regional-comparison", q, "")
}

func (c *Client) opaque(ctx context.Context, endpoint, path string, q url.Values, farmID string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, endpoint, path, q, &raw)
	if IsStatusError(err) {
		c.degraded(endpoint, farmID, err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

func (c *Client) degraded(endpoint, farmID string, err error) {
	c.log.Debug("upstream returned non-2xx; using empty default",
		zap.String("endpoint", endpoint), zap.String("farmId", farmID), zap.Error(err))
}
