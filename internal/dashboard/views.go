package dashboard

import (
	"sort"

	"github.com/i474232898/cropple-dashboard/internal/farm"
	"github.com/i474232898/cropple-dashboard/internal/nba"
)

// DefaultAlertLimit is how many alerts the dashboard panels show.
const DefaultAlertLimit = 5

// Alerts is the alerts panel view.
type Alerts struct {
	Weather []farm.WeatherAlert `json:"weatherAlerts"`
	Harvest []farm.HarvestAlert `json:"harvestAlerts"`
}

// TopWeatherAlerts returns at most n alerts of w by priority, highest first.
func TopWeatherAlerts(w *farm.Weather, n int) []farm.WeatherAlert {
	if w == nil {
		return []farm.WeatherAlert{}
	}
	out := make([]farm.WeatherAlert, len(w.Alerts))
	copy(out, w.Alerts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopHarvestAlerts returns at most n alerts by priority, highest first.
func TopHarvestAlerts(alerts []farm.HarvestAlert, n int) []farm.HarvestAlert {
	out := make([]farm.HarvestAlert, len(alerts))
	copy(out, alerts)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// AlertsView builds the alerts panel for d.
func AlertsView(d Data, n int) Alerts {
	return Alerts{
		Weather: TopWeatherAlerts(d.Weather, n),
		Harvest: TopHarvestAlerts(d.HarvestAlerts, n),
	}
}

// RecommendationsView ranks d's recommendations by Next Best Action score.
func RecommendationsView(d Data, n int) []farm.Recommendation {
	return nba.Top(d.Recommendations, n)
}
