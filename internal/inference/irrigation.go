package inference

// FieldData describes a field for irrigation scheduling. Unset values take the
// defaults of a medium loam in vegetative stage.
type FieldData struct {
	SoilMoisture    *float64      `json:"soil_moisture,omitempty"`
	CropStage       string        `json:"crop_stage,omitempty"`
	WeatherForecast []ForecastDay `json:"weather_forecast,omitempty"`
	FieldCapacity   *float64      `json:"field_capacity,omitempty"`
	WiltingPoint    *float64      `json:"wilting_point,omitempty"`
}

func (f FieldData) isEmpty() bool {
	return f.SoilMoisture == nil && f.CropStage == "" && len(f.WeatherForecast) == 0 &&
		f.FieldCapacity == nil && f.WiltingPoint == nil
}

// ForecastDay is one day of the weather forecast. Precipitation is in mm,
// temperature in °C and humidity in percent.
type ForecastDay struct {
	Precipitation *float64 `json:"precipitation,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
}

const (
	defaultSoilMoisture  = 0.3
	defaultCropStage     = "vegetative"
	defaultFieldCapacity = 0.4
	defaultWiltingPoint  = 0.15
	defaultTemperature   = 25.0
	defaultHumidity      = 60.0
	forecastDays         = 7
)

// stageRequirement is the relative crop water demand per growth stage.
var stageRequirement = map[string]float64{
	"germination": 0.3,
	"emergence":   0.4,
	"vegetative":  0.6,
	"flowering":   0.8,
	"fruiting":    0.7,
	"maturity":    0.4,
}

// IrrigationPlan is the result of OptimizeIrrigation. Amounts are in mm.
type IrrigationPlan struct {
	IrrigationNeeded  bool              `json:"irrigation_needed"`
	RecommendedAmount float64           `json:"recommended_amount"`
	Urgency           string            `json:"urgency"`
	Timing            string            `json:"timing"`
	WaterStressLevel  float64           `json:"water_stress_level"`
	CurrentConditions CurrentConditions `json:"current_conditions"`
	WeatherFactors    WeatherFactors    `json:"weather_factors"`
	EfficiencyTips    []string          `json:"efficiency_tips"`
	OptimizationInfo  OptimizationInfo  `json:"optimization_info"`
}

type CurrentConditions struct {
	SoilMoisture          float64 `json:"soil_moisture"`
	AvailableWaterPercent float64 `json:"available_water_percent"`
	CropStage             string  `json:"crop_stage"`
}

type WeatherFactors struct {
	ExpectedRainfall7d       float64 `json:"expected_rainfall_7d"`
	AvgTemperature           float64 `json:"avg_temperature"`
	AvgHumidity              float64 `json:"avg_humidity"`
	EvapotranspirationFactor float64 `json:"evapotranspiration_factor"`
}

type OptimizationInfo struct {
	BaseRequirement     float64 `json:"base_requirement"`
	AdjustedRequirement float64 `json:"adjusted_requirement"`
	Method              string  `json:"method"`
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// OptimizeIrrigation schedules irrigation from a soil water balance, adjusted for the
// next seven days of forecast.
func OptimizeIrrigation(f FieldData) IrrigationPlan {
	moisture := valueOr(f.SoilMoisture, defaultSoilMoisture)
	capacity := valueOr(f.FieldCapacity, defaultFieldCapacity)
	wilting := valueOr(f.WiltingPoint, defaultWiltingPoint)
	stage := f.CropStage
	if stage == "" {
		stage = defaultCropStage
	}

	available := max(0, moisture-wilting)
	maxAvailable := capacity - wilting
	var stress float64
	if maxAvailable > 0 {
		stress = available / maxAvailable
	}

	base, ok := stageRequirement[stage]
	if !ok {
		base = stageRequirement[defaultCropStage]
	}

	rainfall, avgTemp, avgHumidity := 0.0, defaultTemperature, defaultHumidity
	if len(f.WeatherForecast) > 0 {
		days := f.WeatherForecast
		if len(days) > forecastDays {
			days = days[:forecastDays]
		}
		temps := make([]float64, 0, len(days))
		hums := make([]float64, 0, len(days))
		for _, d := range days {
			rainfall += valueOr(d.Precipitation, 0)
			temps = append(temps, valueOr(d.Temperature, defaultTemperature))
			hums = append(hums, valueOr(d.Humidity, defaultHumidity))
		}
		avgTemp, avgHumidity = mean(temps), mean(hums)
	}

	et := 1.0
	if avgTemp > 30 {
		et += 0.2
	} else if avgTemp < 15 {
		et -= 0.2
	}
	if avgHumidity > 80 {
		et -= 0.1
	} else if avgHumidity < 40 {
		et += 0.1
	}
	adjusted := base * et

	var (
		urgency, timing string
		amount          float64
	)
	switch {
	case stress < 0.3:
		urgency, timing = "critical", "immediate"
		amount = (capacity - moisture) * 1000
	case stress < 0.5:
		urgency, timing = "high", "within_24h"
		amount = (capacity - moisture) * 800
	case stress < 0.7:
		urgency, timing = "moderate", "within_3_days"
		amount = adjusted * 600
	default:
		urgency, timing = "low", "monitor"
	}

	if rainfall > amount*0.8 {
		amount = 0
		timing = "delay_for_rain"
		urgency = "low"
	} else if rainfall > 0 {
		amount = max(0, amount-rainfall)
	}

	tips := []string{}
	if urgency == "critical" || urgency == "high" {
		tips = append(tips, "Apply during early morning or evening to reduce evaporation")
	}
	if avgTemp > 30 {
		tips = append(tips, "Consider mulching to retain soil moisture")
	}
	if rainfall > 10 {
		tips = append(tips, "Delay irrigation until after expected rainfall")
	}

	return IrrigationPlan{
		IrrigationNeeded:  amount > 0,
		RecommendedAmount: round(amount, 1),
		Urgency:           urgency,
		Timing:            timing,
		WaterStressLevel:  round(stress, 2),
		CurrentConditions: CurrentConditions{
			SoilMoisture:          moisture,
			AvailableWaterPercent: round(stress*100, 1),
			CropStage:             stage,
		},
		WeatherFactors: WeatherFactors{
			ExpectedRainfall7d:       round(rainfall, 1),
			AvgTemperature:           round(avgTemp, 1),
			AvgHumidity:              round(avgHumidity, 1),
			EvapotranspirationFactor: round(et, 2),
		},
		EfficiencyTips: tips,
		OptimizationInfo: OptimizationInfo{
			BaseRequirement:     base,
			AdjustedRequirement: round(adjusted, 2),
			Method:              "water_balance_model",
		},
	}
}
