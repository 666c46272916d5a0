// Package inference implements the agronomic models behind /ml-inference: yield
// prediction, NDVI stress analysis and irrigation scheduling.
package inference

import (
	"errors"
	"fmt"
	"math"
)

// Actions accepted by Run.
const (
	ActionPredictYield       = "predict_yield"
	ActionAnalyzeStress      = "analyze_stress"
	ActionOptimizeIrrigation = "optimize_irrigation"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrNoFeatures         = errors.New("features are required for yield prediction")
	ErrNoSatelliteData    = errors.New("satellite data is required for stress analysis")
	ErrTooFewObservations = errors.New("at least 3 observations required for stress analysis")
	ErrNoFieldData        = errors.New("field data is required for irrigation optimization")
)

// Request is the body of an inference call.
type Request struct {
	Action        string             `json:"action" validate:"required"`
	Features      map[string]float64 `json:"features,omitempty"`
	CropType      string             `json:"crop_type,omitempty"`
	SatelliteData []Observation      `json:"satellite_data,omitempty" validate:"omitempty,dive"`
	FieldData     *FieldData         `json:"field_data,omitempty"`
}

// Run dispatches req to the model named by its action.
func Run(req Request) (any, error) {
	switch req.Action {
	case ActionPredictYield:
		if len(req.Features) == 0 {
			return nil, ErrNoFeatures
		}
		return PredictYield(req.Features, req.CropType), nil
	case ActionAnalyzeStress:
		if len(req.SatelliteData) == 0 {
			return nil, ErrNoSatelliteData
		}
		return AnalyzeStress(req.SatelliteData)
	case ActionOptimizeIrrigation:
		if req.FieldData == nil || req.FieldData.isEmpty() {
			return nil, ErrNoFieldData
		}
		return OptimizeIrrigation(*req.FieldData), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
