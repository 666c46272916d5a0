package farm

import (
	"errors"
	"time"
)

// ErrMissingFarmID is returned whenever a fetch is attempted without a farm identity.
var ErrMissingFarmID = errors.New("farm id is required")

// Farm is the tenant every dashboard resource is scoped by.
type Farm struct {
	ID        string   `json:"id" yaml:"id"`
	Name      string   `json:"name,omitempty" yaml:"name"`
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude"`
	Address   Address  `json:"address,omitempty" yaml:"address"`
}

// Address is only used to resolve coordinates when none were supplied.
type Address struct {
	Street  string `json:"street,omitempty" yaml:"street"`
	City    string `json:"city,omitempty" yaml:"city"`
	State   string `json:"state,omitempty" yaml:"state"`
	Country string `json:"country,omitempty" yaml:"country"`
}

// IsZero reports whether no address component is set.
func (a Address) IsZero() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Country == ""
}

// HasCoordinates reports whether both latitude and longitude are known.
func (f Farm) HasCoordinates() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Weather is the current-conditions payload of the weather resource.
type Weather struct {
	Temp          float64        `json:"temp"`
	Humidity      float64        `json:"humidity,omitempty"`
	WindSpeed     float64        `json:"windSpeed,omitempty"`
	Precipitation float64        `json:"precipitation,omitempty"`
	Description   string         `json:"description,omitempty"`
	Condition     Condition      `json:"condition,omitempty"`
	Alerts        []WeatherAlert `json:"alerts,omitempty"`
	ObservedAt    *time.Time     `json:"observedAt,omitempty"`
}

// WeatherAlert is a weather warning relevant to field work.
type WeatherAlert struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Severity string `json:"severity,omitempty"`
	Priority int    `json:"priority"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Crop is a planting tracked on the farm.
type Crop struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	FieldID     string     `json:"fieldId,omitempty"`
	Variety     string     `json:"variety,omitempty"`
	Stage       string     `json:"stage,omitempty"`
	AreaHa      float64    `json:"areaHa,omitempty"`
	HealthScore float64    `json:"healthScore,omitempty"`
	PlantedAt   *time.Time `json:"plantedAt,omitempty"`
	HarvestAt   *time.Time `json:"expectedHarvestAt,omitempty"`
}

// Task is a scheduled piece of farm work.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Status   string     `json:"status,omitempty"` // todo|in_progress|done
	Priority string     `json:"priority,omitempty"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// Satellite is the latest vegetation-index observation for the farm.
type Satellite struct {
	NDVI       float64    `json:"ndvi"`
	EVI        float64    `json:"evi,omitempty"`
	CloudCover float64    `json:"cloudCover,omitempty"`
	CapturedAt *time.Time `json:"capturedAt,omitempty"`
	ImageURL   string     `json:"imageUrl,omitempty"`
}

// Recommendation is a Next Best Action produced upstream.
type Recommendation struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Urgency     int     `json:"urgency,omitempty"`
	ROI         int     `json:"roi,omitempty"`
	Feasibility int     `json:"feasibility,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Priority    string  `json:"priority,omitempty"`
}

// HarvestAlert is a disease/pest or harvest-timing alert for a crop.
type HarvestAlert struct {
	ID       string `json:"id"`
	CropID   string `json:"cropId,omitempty"`
	Type     string `json:"type"`
	Severity string `json:"severity,omitempty"`
	Priority int    `json:"priority"`
	Message  string `json:"message,omitempty"`
}
