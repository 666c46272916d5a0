package farm

import "strings"

// NormalizeCondition maps a free-text weather description onto a Condition.
func NormalizeCondition(text string) Condition {
	switch {
	case text == "":
		return ConditionUnknown
	case containsAny(text, "thunder", "storm"):
		return ConditionStorm
	case containsAny(text, "rain", "shower", "drizzle"):
		return ConditionRain
	case containsAny(text, "snow", "sleet", "blizzard"):
		return ConditionSnow
	case containsAny(text, "mist", "fog", "haze"):
		return ConditionMist
	case containsAny(text, "cloud", "overcast"):
		return ConditionCloudy
	case containsAny(text, "sunny", "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}

// Icon returns the dashboard icon name for a condition.
func (c Condition) Icon() string {
	switch c {
	case ConditionClear:
		return "sun"
	case ConditionCloudy:
		return "cloud"
	case ConditionRain:
		return "cloud-rain"
	case ConditionSnow:
		return "snowflake"
	case ConditionStorm:
		return "cloud-lightning"
	case ConditionMist:
		return "cloud-fog"
	default:
		return "thermometer"
	}
}

// containsAny reports whether text contains any of subs, ignoring case.
func containsAny(text string, subs ...string) bool {
	text = strings.ToLower(text)
	for _, sub := range subs {
		if strings.Contains(text, sub) {
			return true
		}
	}
	return false
}
