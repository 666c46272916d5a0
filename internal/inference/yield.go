package inference

import (
	"maps"
	"math"
	"slices"
	"strings"
)

const baseYield = 8.5

type scaler struct{ mean, std float64 }

var (
	featureWeights = map[string]float64{
		"weather_temp":     0.15,
		"weather_rainfall": 0.25,
		"weather_humidity": 0.08,
		"weather_gdd":      0.20,
		"soil_ph":          0.10,
		"soil_om":          0.12,
		"soil_n":           0.18,
		"soil_p":           0.08,
		"satellite_ndvi":   0.30,
		"satellite_evi":    0.15,
		"field_area":       0.05,
		"planting_doy":     0.08,
	}

	featureScalers = map[string]scaler{
		"weather_temp":     {20.0, 8.0},
		"weather_rainfall": {500.0, 200.0},
		"weather_humidity": {65.0, 15.0},
		"weather_gdd":      {1500.0, 400.0},
		"soil_ph":          {6.8, 0.8},
		"soil_om":          {3.0, 1.5},
		"soil_n":           {30.0, 15.0},
		"soil_p":           {25.0, 10.0},
		"satellite_ndvi":   {0.7, 0.2},
		"satellite_evi":    {0.5, 0.15},
		"field_area":       {100.0, 50.0},
		"planting_doy":     {120.0, 30.0},
	}

	// featureOrder fixes the summation order so predictions are reproducible.
	featureOrder = slices.Sorted(maps.Keys(featureWeights))

	cropFactors = map[string]float64{
		"corn":    1.0,
		"soybean": 0.7,
		"wheat":   0.9,
		"rice":    1.1,
	}
)

// YieldPrediction is the result of PredictYield. Yields are in t/ha.
type YieldPrediction struct {
	PredictedYield    float64            `json:"predicted_yield"`
	Confidence        float64            `json:"confidence"`
	Uncertainty       Uncertainty        `json:"uncertainty"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	ModelInfo         YieldModelInfo     `json:"model_info"`
}

type Uncertainty struct {
	LowerBound   float64 `json:"lower_bound"`
	UpperBound   float64 `json:"upper_bound"`
	StdDeviation float64 `json:"std_deviation"`
}

type YieldModelInfo struct {
	ModelType  string  `json:"model_type"`
	CropType   string  `json:"crop_type"`
	BaseYield  float64 `json:"base_yield"`
	CropFactor float64 `json:"crop_factor"`
}

// PredictYield scores z-normalised features against fixed weights, scales by the
// crop factor and derives confidence from how many known features were supplied.
// An empty cropType means corn; unknown crops use a factor of 1.
func PredictYield(features map[string]float64, cropType string) YieldPrediction {
	if cropType == "" {
		cropType = "corn"
	}

	normalized := make(map[string]float64, len(features))
	for name, v := range features {
		if s, ok := featureScalers[name]; ok {
			normalized[name] = (v - s.mean) / s.std
		} else {
			normalized[name] = v
		}
	}

	prediction := baseYield
	var totalWeight float64
	known := 0
	for _, name := range featureOrder {
		w := featureWeights[name]
		n, ok := normalized[name]
		if !ok {
			continue
		}
		prediction += n * w
		totalWeight += math.Abs(w)
		known++
	}

	factor, ok := cropFactors[strings.ToLower(cropType)]
	if !ok {
		factor = 1.0
	}
	prediction *= factor
	if prediction < 0 {
		prediction = 0
	}

	completeness := float64(known) / float64(len(featureWeights))
	confidence := min(0.95, 0.6+completeness*0.35)
	u := 1 - confidence

	importance := make(map[string]float64, known)
	for _, name := range featureOrder {
		w := featureWeights[name]
		n, ok := normalized[name]
		if !ok {
			continue
		}
		if totalWeight > 0 {
			importance[name] = math.Abs(n*w) / totalWeight
		} else {
			importance[name] = 0
		}
	}

	return YieldPrediction{
		PredictedYield: round(prediction, 2),
		Confidence:     round(confidence, 3),
		Uncertainty: Uncertainty{
			LowerBound:   round(prediction*(1-u*0.2), 2),
			UpperBound:   round(prediction*(1+u*0.2), 2),
			StdDeviation: round(prediction*u*0.1, 2),
		},
		FeatureImportance: importance,
		ModelInfo: YieldModelInfo{
			ModelType:  "random_forest_simulation",
			CropType:   cropType,
			BaseYield:  baseYield,
			CropFactor: factor,
		},
	}
}
