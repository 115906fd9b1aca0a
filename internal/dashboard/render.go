package dashboard

import (
	"fmt"

	"github.com/breathesafe/breathe-backend/types"
)

// RiskBand is the rendered interpretation of an AQI value. Every integer
// AQI maps to exactly one band.
type RiskBand struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

// RiskLevel partitions the AQI scale into the four display bands.
func RiskLevel(aqi int) RiskBand {
	switch {
	case aqi <= 50:
		return RiskBand{Label: "Good", Emoji: "😊", Color: "#4ade80"}
	case aqi <= 100:
		return RiskBand{Label: "Moderate", Emoji: "😐", Color: "#facc15"}
	case aqi <= 150:
		return RiskBand{Label: "Unhealthy", Emoji: "😷", Color: "#fb923c"}
	default:
		return RiskBand{Label: "Hazardous", Emoji: "☠️", Color: "#ef4444"}
	}
}

// DominantPollutant returns the pollutant with the highest concentration,
// considering only the known pollutant codes in their fixed order. The
// earlier code wins a concentration tie. Empty input yields "".
func DominantPollutant(pollutants map[string]types.Pollutant) string {
	dominant := ""
	best := -1.0
	for _, code := range types.PollutantCandidates {
		p, ok := pollutants[code]
		if !ok {
			continue
		}
		if p.Concentration > best {
			dominant = code
			best = p.Concentration
		}
	}
	return dominant
}

// AnalyzeSeries finds the worst and best days of an AQI series. On equal
// values the earlier day is kept. An empty series yields the N/A analysis.
func AnalyzeSeries(series []types.DaySample) types.SeriesAnalysis {
	if len(series) == 0 {
		return types.SeriesAnalysis{WorstDay: "N/A", BestDay: "N/A"}
	}

	worst := series[0]
	best := series[0]
	for _, sample := range series[1:] {
		if sample.MaxAQI > worst.MaxAQI {
			worst = sample
		}
		if sample.MaxAQI < best.MaxAQI {
			best = sample
		}
	}

	return types.SeriesAnalysis{
		WorstDay: fmt.Sprintf("%s (%s)", worst.Day, worst.Date),
		WorstAQI: worst.MaxAQI,
		BestDay:  fmt.Sprintf("%s (%s)", best.Day, best.Date),
		BestAQI:  best.MaxAQI,
	}
}
