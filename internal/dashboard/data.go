package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/cropple-dashboard/internal/farm"
)

// Key names one slot of Data.
type Key string

const (
	KeyWeather         Key = "weather"
	KeyCrops           Key = "crops"
	KeyTasks           Key = "tasks"
	KeySatellite       Key = "satellite"
	KeyRecommendations Key = "recommendations"
	KeyRegionalData    Key = "regionalData"
	KeyHarvestAlerts   Key = "harvestAlerts"
	KeyQueueStatus     Key = "queueStatus"
	KeyBudgetData      Key = "budgetData"
)

// ErrUnknownKey is returned by ParseKey and UpdateData for names outside the nine slots.
var ErrUnknownKey = errors.New("unknown dashboard key")

// ParseKey validates a slot name.
func ParseKey(s string) (Key, error) {
	switch k := Key(s); k {
	case KeyWeather, KeyCrops, KeyTasks, KeySatellite,
		KeyRecommendations, KeyRegionalData, KeyHarvestAlerts, KeyQueueStatus, KeyBudgetData:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Cached reports whether k is backed by a cached resource.
func (k Key) Cached() bool {
	switch k {
	case KeyWeather, KeyCrops, KeyTasks, KeySatellite:
		return true
	}
	return false
}

// Data is the merged dashboard view for one farm. Every slot is always present in
// its JSON form, null when nothing has been fetched.
type Data struct {
	FarmID          string                `json:"farmId"`
	Weather         *farm.Weather         `json:"weather"`
	Crops           []farm.Crop           `json:"crops"`
	Tasks           []farm.Task           `json:"tasks"`
	Satellite       *farm.Satellite       `json:"satellite"`
	Recommendations []farm.Recommendation `json:"recommendations"`
	RegionalData    json.RawMessage       `json:"regionalData"`
	HarvestAlerts   []farm.HarvestAlert   `json:"harvestAlerts"`
	QueueStatus     json.RawMessage       `json:"queueStatus"`
	BudgetData      json.RawMessage       `json:"budgetData"`
	Loading         bool                  `json:"loading"`
	Error           *string               `json:"error"`
	LastUpdated     *time.Time            `json:"lastUpdated"`
}

// additional holds the five feeds that are not cached resources.
type additional struct {
	recommendations []farm.Recommendation
	regionalData    json.RawMessage
	harvestAlerts   []farm.HarvestAlert
	queueStatus     json.RawMessage
	budgetData      json.RawMessage
}

func emptyAdditional() additional {
	return additional{
		recommendations: []farm.Recommendation{},
		harvestAlerts:   []farm.HarvestAlert{},
	}
}

// firstError returns the first non-nil message in argument order.
func firstError(errs ...*string) *string {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// raw normalises an opaque payload; an empty value or JSON null becomes nil.
func raw(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}
