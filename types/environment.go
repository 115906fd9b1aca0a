package types

// Pollutant holds the measured concentration of a single pollutant in µg/m³.
type Pollutant struct {
	Concentration float64 `json:"concentration"`
}

// PollutantCandidates is the fixed, ordered set of pollutant codes
// considered when deriving the dominant pollutant. Order matters: the first
// code wins concentration ties.
var PollutantCandidates = []string{"PM2.5", "PM10", "NO2", "SO2", "O3", "CO"}

// EnvironmentRecord is the consolidated snapshot for one location. It is
// replaced wholesale on each new location query, never merged.
type EnvironmentRecord struct {
	City        string               `json:"city"`
	Country     string               `json:"country,omitempty"`
	Lat         float64              `json:"lat"`
	Lon         float64              `json:"lon"`
	AQI         int                  `json:"aqi"`
	Temperature float64              `json:"temperature"`
	Humidity    float64              `json:"humidity"`
	Description string               `json:"description"`
	Icon        string               `json:"icon,omitempty"`
	Pollutants  map[string]Pollutant `json:"pollutants"`
}

// DaySample is one day of an AQI series, aggregated to the day's maximum.
type DaySample struct {
	Day    string `json:"day"`
	Date   string `json:"date"`
	MaxAQI int    `json:"max_aqi"`
}

// SeriesAnalysis summarizes an AQI series: worst and best day, labeled
// "Day (Date)".
type SeriesAnalysis struct {
	WorstDay string `json:"worst_day"`
	WorstAQI int    `json:"worst_aqi"`
	BestDay  string `json:"best_day"`
	BestAQI  int    `json:"best_aqi"`
}

// MicroZone is a simulated fine-grained AQI reading near the queried
// coordinate (traffic hotspots, construction zones and similar).
type MicroZone struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Type string  `json:"type"`
	AQI  int     `json:"aqi"`
	Risk string  `json:"risk"`
}

// EnvironmentReport is the full payload of the environment endpoint:
// the immediate record plus series data and whatever secondary sections
// have been produced. Secondary sections are best-effort and may be absent.
type EnvironmentReport struct {
	Environment         EnvironmentRecord `json:"environment"`
	Forecast            []DaySample       `json:"forecast"`
	History             []DaySample       `json:"history"`
	ForecastAnalysis    SeriesAnalysis    `json:"forecast_analysis"`
	MicroAQI            []MicroZone       `json:"micro_aqi,omitempty"`
	CigaretteEquivalent float64           `json:"cigarette_equivalent"`
	News                []NewsItem        `json:"news,omitempty"`
	HealthAdvice        string            `json:"health_advice,omitempty"`
	Sources             []string          `json:"sources,omitempty"`
	SourceNarrative     string            `json:"source_narrative,omitempty"`
	DailyPlan           *DailyPlan        `json:"daily_plan,omitempty"`
	EmergencyInfo       *SupportRecord    `json:"emergency_info,omitempty"`
}
