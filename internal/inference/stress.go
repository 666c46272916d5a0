package inference

import (
	"fmt"
	"math"
)

// Observation is one satellite NDVI reading.
type Observation struct {
	NDVI *float64 `json:"ndvi"`
	Date string   `json:"date"`
}

// StressAnalysis is the result of AnalyzeStress.
type StressAnalysis struct {
	StressLevel     string         `json:"stress_level"`
	Confidence      float64        `json:"confidence"`
	Statistics      NDVIStatistics `json:"statistics"`
	Trend           Trend          `json:"trend"`
	Anomalies       []Anomaly      `json:"anomalies"`
	Recommendations []string       `json:"recommendations"`
	AnalysisInfo    StressInfo     `json:"analysis_info"`
}

type NDVIStatistics struct {
	Mean                   float64 `json:"mean_ndvi"`
	Std                    float64 `json:"std_ndvi"`
	Min                    float64 `json:"min_ndvi"`
	Max                    float64 `json:"max_ndvi"`
	CoefficientOfVariation float64 `json:"coefficient_of_variation"`
}

type Trend struct {
	Direction    string  `json:"direction"`
	Slope        float64 `json:"slope"`
	Significance string  `json:"significance"`
}

type Anomaly struct {
	Date      string  `json:"date"`
	NDVI      float64 `json:"ndvi"`
	Deviation float64 `json:"deviation"`
	Type      string  `json:"type"`
}

type StressInfo struct {
	Observations int    `json:"observations"`
	DateRange    string `json:"date_range"`
	Method       string `json:"method"`
}

// AnalyzeStress classifies crop stress from an NDVI time series. Observations
// without both an NDVI value and a date are ignored; at least three must remain.
func AnalyzeStress(obs []Observation) (StressAnalysis, error) {
	if len(obs) == 0 {
		return StressAnalysis{}, ErrNoSatelliteData
	}

	var (
		values []float64
		dates  []string
	)
	for _, o := range obs {
		if o.NDVI == nil || o.Date == "" {
			continue
		}
		values = append(values, *o.NDVI)
		dates = append(dates, o.Date)
	}
	if len(values) < 3 {
		return StressAnalysis{}, ErrTooFewObservations
	}

	m := mean(values)
	std := popStd(values, m)
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	slope := trendSlope(values)

	var level string
	switch {
	case m > 0.7:
		level = "low"
	case m > 0.5:
		level = "moderate"
	case m > 0.3:
		level = "high"
	default:
		level = "severe"
	}

	anomalies := []Anomaly{}
	for i, v := range values {
		dev := math.Abs(v - m)
		if dev <= 2*std {
			continue
		}
		kind := "high"
		if v < m {
			kind = "low"
		}
		anomalies = append(anomalies, Anomaly{Date: dates[i], NDVI: v, Deviation: dev, Type: kind})
	}

	direction := "stable"
	if slope > 0.01 {
		direction = "improving"
	} else if slope < -0.01 {
		direction = "declining"
	}

	significance := "low"
	if math.Abs(slope) > 0.02 {
		significance = "high"
	} else if math.Abs(slope) > 0.005 {
		significance = "moderate"
	}

	var cv float64
	if m > 0 {
		cv = std / m
	}

	return StressAnalysis{
		StressLevel: level,
		Confidence:  min(0.95, 0.7+(1-cv)*0.25),
		Statistics: NDVIStatistics{
			Mean:                   round(m, 3),
			Std:                    round(std, 3),
			Min:                    round(lo, 3),
			Max:                    round(hi, 3),
			CoefficientOfVariation: round(cv, 3),
		},
		Trend: Trend{
			Direction:    direction,
			Slope:        round(slope, 4),
			Significance: significance,
		},
		Anomalies:       anomalies,
		Recommendations: stressRecommendations(level, direction, len(anomalies)),
		AnalysisInfo: StressInfo{
			Observations: len(values),
			DateRange:    fmt.Sprintf("%s to %s", dates[0], dates[len(dates)-1]),
			Method:       "statistical_analysis",
		},
	}, nil
}

// popStd is the population standard deviation.
func popStd(xs []float64, m float64) float64 {
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// trendSlope is the least-squares slope of ys against their index.
func trendSlope(ys []float64) float64 {
	n := float64(len(ys))
	xm := (n - 1) / 2
	ym := mean(ys)
	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xm
		num += dx * (y - ym)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func stressRecommendations(level, trend string, anomalies int) []string {
	recs := []string{}
	switch level {
	case "severe":
		recs = append(recs,
			"Immediate irrigation required to prevent crop damage",
			"Consider emergency nutrient application",
			"Investigate potential pest or disease issues")
	case "high":
		recs = append(recs,
			"Increase irrigation frequency",
			"Monitor for pest and disease pressure",
			"Consider stress-reducing treatments")
	case "moderate":
		recs = append(recs,
			"Optimize irrigation timing",
			"Monitor crop development closely")
	}

	switch trend {
	case "declining":
		recs = append(recs,
			"Investigate causes of declining vegetation health",
			"Consider soil testing for nutrient deficiencies")
	case "improving":
		recs = append(recs, "Continue current management practices")
	}

	if anomalies > 2 {
		recs = append(recs,
			"High variability detected - investigate field uniformity",
			"Consider precision management approaches")
	}
	return recs
}
