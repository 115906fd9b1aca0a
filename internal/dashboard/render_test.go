package dashboard

import (
	"testing"

	"github.com/breathesafe/breathe-backend/types"
	"github.com/stretchr/testify/assert"
)

func TestRiskLevelBands(t *testing.T) {
	cases := []struct {
		aqi   int
		label string
		emoji string
	}{
		{0, "Good", "😊"},
		{50, "Good", "😊"},
		{51, "Moderate", "😐"},
		{100, "Moderate", "😐"},
		{101, "Unhealthy", "😷"},
		{150, "Unhealthy", "😷"},
		{151, "Hazardous", "☠️"},
		{999, "Hazardous", "☠️"},
	}
	for _, tc := range cases {
		band := RiskLevel(tc.aqi)
		assert.Equal(t, tc.label, band.Label, "aqi=%d", tc.aqi)
		assert.Equal(t, tc.emoji, band.Emoji, "aqi=%d", tc.aqi)
	}
}

func TestRiskLevelCoversWholeScale(t *testing.T) {
	// Every AQI value lands in exactly one band with a non-empty label.
	for aqi := -10; aqi <= 600; aqi++ {
		band := RiskLevel(aqi)
		assert.NotEmpty(t, band.Label, "aqi=%d", aqi)
		assert.NotEmpty(t, band.Color, "aqi=%d", aqi)
	}
}

func TestDominantPollutant(t *testing.T) {
	pollutants := map[string]types.Pollutant{
		"PM2.5": {Concentration: 80},
		"PM10":  {Concentration: 120},
		"NO2":   {Concentration: 45},
	}
	assert.Equal(t, "PM10", DominantPollutant(pollutants))
}

func TestDominantPollutantTieKeepsFixedOrder(t *testing.T) {
	pollutants := map[string]types.Pollutant{
		"NO2":   {Concentration: 90},
		"PM2.5": {Concentration: 90},
		"O3":    {Concentration: 90},
	}
	// PM2.5 precedes NO2 and O3 in the candidate order, so it wins the tie.
	assert.Equal(t, "PM2.5", DominantPollutant(pollutants))
}

func TestDominantPollutantIgnoresUnknownCodes(t *testing.T) {
	pollutants := map[string]types.Pollutant{
		"NH3":  {Concentration: 500},
		"PM10": {Concentration: 30},
	}
	assert.Equal(t, "PM10", DominantPollutant(pollutants))
}

func TestDominantPollutantEmpty(t *testing.T) {
	assert.Equal(t, "", DominantPollutant(nil))
	assert.Equal(t, "", DominantPollutant(map[string]types.Pollutant{}))
}

func TestAnalyzeSeries(t *testing.T) {
	series := []types.DaySample{
		{Day: "Mon", Date: "2025-01-06", MaxAQI: 120},
		{Day: "Tue", Date: "2025-01-07", MaxAQI: 250},
		{Day: "Wed", Date: "2025-01-08", MaxAQI: 80},
	}

	analysis := AnalyzeSeries(series)
	assert.Equal(t, "Tue (2025-01-07)", analysis.WorstDay)
	assert.Equal(t, 250, analysis.WorstAQI)
	assert.Equal(t, "Wed (2025-01-08)", analysis.BestDay)
	assert.Equal(t, 80, analysis.BestAQI)
}

func TestAnalyzeSeriesTieKeepsEarlierDay(t *testing.T) {
	series := []types.DaySample{
		{Day: "Mon", Date: "2025-01-06", MaxAQI: 150},
		{Day: "Tue", Date: "2025-01-07", MaxAQI: 150},
		{Day: "Wed", Date: "2025-01-08", MaxAQI: 150},
	}

	analysis := AnalyzeSeries(series)
	assert.Equal(t, "Mon (2025-01-06)", analysis.WorstDay)
	assert.Equal(t, "Mon (2025-01-06)", analysis.BestDay)
}

func TestAnalyzeSeriesSingleSample(t *testing.T) {
	series := []types.DaySample{{Day: "Mon", Date: "2025-01-06", MaxAQI: 90}}

	analysis := AnalyzeSeries(series)
	assert.Equal(t, "Mon (2025-01-06)", analysis.WorstDay)
	assert.Equal(t, "Mon (2025-01-06)", analysis.BestDay)
	assert.Equal(t, 90, analysis.WorstAQI)
	assert.Equal(t, 90, analysis.BestAQI)
}

func TestAnalyzeSeriesEmpty(t *testing.T) {
	analysis := AnalyzeSeries(nil)
	assert.Equal(t, "N/A", analysis.WorstDay)
	assert.Equal(t, "N/A", analysis.BestDay)
	assert.Zero(t, analysis.WorstAQI)
	assert.Zero(t, analysis.BestAQI)
}
