// Package upstream calls the same-origin JSON API routes the dashboard aggregates.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Endpoint names, used for breakers, logs and errors.
const (
	EndpointWeather         = "weather"
	EndpointCrops           = "crops"
	EndpointTasks           = "tasks"
	EndpointSatellite       = "satellite"
	EndpointRecommendations = "recommendations"
	EndpointHarvestAlerts   = "harvest-alerts"
	EndpointQueueStatus     = "queue-status"
	EndpointBudget          = "budget"
	EndpointRegional        = "regional-comparison"
)

var endpoints = []string{
	EndpointWeather, EndpointCrops, EndpointTasks, EndpointSatellite,
	EndpointRecommendations, EndpointHarvestAlerts, EndpointQueueStatus,
	EndpointBudget, EndpointRegional,
}

// adHoc endpoints answer non-2xx with an empty default instead of an error.
var adHoc = map[string]bool{
	EndpointRecommendations: true,
	EndpointHarvestAlerts:   true,
	EndpointQueueStatus:     true,
	EndpointBudget:          true,
	EndpointRegional:        true,
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Backoff    BackoffConfig
	Logger     *zap.Logger
}

// Client talks to the upstream API routes. It is safe for concurrent use.
type Client struct {
	baseURL  string
	hc       *http.Client
	backoff  BackoffConfig
	breakers map[string]*gobreaker.CircuitBreaker
	log      *zap.Logger
}

// NewClient creates a Client with one circuit breaker per endpoint.
func NewClient(cfg Config) *Client {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(endpoints))
	for _, name := range endpoints {
		breakers[name] = newBreaker(name, adHoc[name], log)
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		hc:       httpClient,
		backoff:  cfg.Backoff,
		breakers: breakers,
		log:      log,
	}
}

// IsStatusError reports whether err is a non-2xx upstream response.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		return req, nil
	}

	resp, err := c.send(ctx, endpoint, build)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}
