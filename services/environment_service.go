package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	envFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "breathe_upstream_fetch_duration_seconds",
		Help:    "Latency of upstream environment data fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"collaborator"})

	envUpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breathe_upstream_fetch_errors_total",
		Help: "Number of failed upstream environment data fetches",
	}, []string{"collaborator"})

	envCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breathe_environment_cache_hits_total",
		Help: "Number of environment reports served from the Redis cache",
	})
)

// owmAQIScale maps the OpenWeather 1-5 air quality index onto the
// conventional 0-500 scale (approximate).
var owmAQIScale = map[int]int{1: 40, 2: 80, 3: 120, 4: 180, 5: 250}

// EnvironmentService fetches the consolidated environment record for a
// coordinate: current weather, air quality with pollutant breakdown, and
// the forecast and history AQI series. Reports are cached in Redis keyed
// by rounded coordinate.
type EnvironmentService struct {
	client *http.Client
	cache  *redis.Client // nil disables caching
	cfg    *config.Config

	weatherBaseURL   string
	pollutionBaseURL string
	waqiBaseURL      string

	// zoneSeed makes the simulated micro-zone generator deterministic in tests.
	zoneSeed int64
	now      func() time.Time
}

func NewEnvironmentService(cfg *config.Config, cache *redis.Client) *EnvironmentService {
	return &EnvironmentService{
		client: &http.Client{
			Timeout: time.Duration(cfg.Pipeline.UpstreamTimeoutSeconds) * time.Second,
		},
		cache:            cache,
		cfg:              cfg,
		weatherBaseURL:   "https://api.openweathermap.org/data/2.5",
		pollutionBaseURL: "http://api.openweathermap.org/data/2.5",
		waqiBaseURL:      "https://api.waqi.info",
		zoneSeed:         time.Now().UnixNano(),
		now:              time.Now,
	}
}

// SetBaseURLs redirects all upstreams to a single test server.
func (s *EnvironmentService) SetBaseURLs(weather, pollution, waqi string) {
	s.weatherBaseURL = weather
	s.pollutionBaseURL = pollution
	s.waqiBaseURL = waqi
}

// SetZoneSeed fixes the micro-zone RNG seed.
func (s *EnvironmentService) SetZoneSeed(seed int64) {
	s.zoneSeed = seed
}

// GetReport fetches (or serves from cache) the environment report for a
// coordinate. cityOverride, when non-empty, replaces the upstream-reported
// city name; a geocode selection is more precise than reverse lookup.
func (s *EnvironmentService) GetReport(ctx context.Context, lat, lon float64, cityOverride string) (*types.EnvironmentReport, error) {
	log := logger.GetLogger()

	cacheKey := fmt.Sprintf("env:%.3f:%.3f", lat, lon)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var report types.EnvironmentReport
			if err := json.Unmarshal([]byte(cached), &report); err == nil {
				envCacheHits.Inc()
				log.Debugw("Environment report served from cache", "key", cacheKey)
				applyCityOverride(&report, cityOverride)
				return &report, nil
			}
			// A corrupt cache entry is dropped, not surfaced.
			s.cache.Del(ctx, cacheKey)
		}
	}

	weather, err := s.fetchWeather(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	air, err := s.fetchAirQuality(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	record := types.EnvironmentRecord{
		City:        weather.city,
		Country:     weather.country,
		Lat:         lat,
		Lon:         lon,
		AQI:         air.aqi,
		Temperature: weather.temperature,
		Humidity:    weather.humidity,
		Description: weather.description,
		Icon:        weather.icon,
		Pollutants:  air.pollutants,
	}

	// Forecast and history are best-effort: a failure yields an empty
	// series, never a failed report.
	forecast, err := s.fetchForecastSeries(ctx, lat, lon)
	if err != nil {
		log.Warnw("AQI forecast fetch failed", "error", err)
		forecast = nil
	}
	history, err := s.fetchHistorySeries(ctx, lat, lon)
	if err != nil {
		log.Warnw("AQI history fetch failed", "error", err)
		history = nil
	}

	report := &types.EnvironmentReport{
		Environment:         record,
		Forecast:            forecast,
		History:             history,
		MicroAQI:            s.microZones(lat, lon),
		CigaretteEquivalent: CalculateCigarettes(air.pm25),
	}

	if s.cache != nil {
		if payload, err := json.Marshal(report); err == nil {
			ttl := time.Duration(s.cfg.Pipeline.CacheTTLMinutes) * time.Minute
			if err := s.cache.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				log.Warnw("Environment cache write failed", "key", cacheKey, "error", err)
			}
		}
	}

	applyCityOverride(report, cityOverride)
	return report, nil
}

func applyCityOverride(report *types.EnvironmentReport, city string) {
	if city != "" {
		report.Environment.City = city
	}
}

type weatherData struct {
	temperature float64
	humidity    float64
	description string
	icon        string
	city        string
	country     string
}

func (s *EnvironmentService) fetchWeather(ctx context.Context, lat, lon float64) (*weatherData, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%f", lat))
	params.Add("lon", fmt.Sprintf("%f", lon))
	params.Add("appid", s.cfg.ExternalServices.OpenWeatherKey)
	params.Add("units", "metric")

	body, err := s.get(ctx, "weather", fmt.Sprintf("%s/weather?%s", s.weatherBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Sys struct {
			Country string `json:"country"`
		} `json:"sys"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.DecodeFailed("weather", err, body)
	}

	data := &weatherData{
		temperature: resp.Main.Temp,
		humidity:    resp.Main.Humidity,
		city:        resp.Name,
		country:     resp.Sys.Country,
	}
	if len(resp.Weather) > 0 {
		data.description = resp.Weather[0].Description
		data.icon = resp.Weather[0].Icon
	}
	return data, nil
}

type airData struct {
	aqi        int
	pm25       float64
	pollutants map[string]types.Pollutant
}

// fetchAirQuality prefers a nearby WAQI monitoring station; stations
// further than the configured distance (or any WAQI failure) fall back to
// the OpenWeather air pollution model.
func (s *EnvironmentService) fetchAirQuality(ctx context.Context, lat, lon float64) (*airData, error) {
	log := logger.GetLogger()

	if s.cfg.ExternalServices.WAQIToken != "" {
		air, err := s.fetchWAQI(ctx, lat, lon)
		if err == nil {
			return air, nil
		}
		log.Warnw("WAQI fetch failed, falling back to OpenWeather pollution model",
			"error", err)
	}

	return s.fetchOWMPollution(ctx, lat, lon)
}

func (s *EnvironmentService) fetchWAQI(ctx context.Context, lat, lon float64) (*airData, error) {
	reqURL := fmt.Sprintf("%s/feed/geo:%f;%f/?token=%s",
		s.waqiBaseURL, lat, lon, s.cfg.ExternalServices.WAQIToken)

	body, err := s.get(ctx, "waqi", reqURL)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			AQI  int `json:"aqi"`
			IAQI map[string]struct {
				V float64 `json:"v"`
			} `json:"iaqi"`
			City struct {
				Name string    `json:"name"`
				Geo  []float64 `json:"geo"`
			} `json:"city"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.DecodeFailed("waqi", err, body)
	}

	if resp.Status != "ok" {
		return nil, errors.Domainf("WAQI feed unavailable: %s", resp.Status)
	}

	// Reject stations too far from the query point; a distant city station
	// misrepresents rural air.
	if len(resp.Data.City.Geo) >= 2 {
		dist := haversineKM(lat, lon, resp.Data.City.Geo[0], resp.Data.City.Geo[1])
		if dist > s.cfg.Pipeline.StationMaxDistanceKM {
			return nil, errors.Domainf("nearest WAQI station is %.1f km away (%s)",
				dist, resp.Data.City.Name)
		}
	}

	iaqiKeys := map[string]string{
		"pm25": "PM2.5", "pm10": "PM10", "no2": "NO2",
		"so2": "SO2", "o3": "O3", "co": "CO",
	}
	pollutants := make(map[string]types.Pollutant, len(iaqiKeys))
	var pm25 float64
	for key, code := range iaqiKeys {
		if v, ok := resp.Data.IAQI[key]; ok {
			pollutants[code] = types.Pollutant{Concentration: v.V}
			if key == "pm25" {
				pm25 = v.V
			}
		}
	}

	return &airData{aqi: resp.Data.AQI, pm25: pm25, pollutants: pollutants}, nil
}

func (s *EnvironmentService) fetchOWMPollution(ctx context.Context, lat, lon float64) (*airData, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%f", lat))
	params.Add("lon", fmt.Sprintf("%f", lon))
	params.Add("appid", s.cfg.ExternalServices.OpenWeatherKey)

	body, err := s.get(ctx, "pollution", fmt.Sprintf("%s/air_pollution?%s", s.pollutionBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}

	var resp struct {
		List []struct {
			Components map[string]float64 `json:"components"`
		} `json:"list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.DecodeFailed("pollution", err, body)
	}

	if len(resp.List) == 0 {
		return nil, errors.Domainf("no air quality data for this location")
	}

	components := resp.List[0].Components
	pm25 := components["pm2_5"]

	return &airData{
		aqi:  CalculateAQI(pm25),
		pm25: pm25,
		pollutants: map[string]types.Pollutant{
			"PM2.5": {Concentration: components["pm2_5"]},
			"PM10":  {Concentration: components["pm10"]},
			"NO2":   {Concentration: components["no2"]},
			"SO2":   {Concentration: components["so2"]},
			"O3":    {Concentration: components["o3"]},
			"CO":    {Concentration: components["co"]},
		},
	}, nil
}

// fetchForecastSeries aggregates the hourly OpenWeather pollution forecast
// into daily maximum AQI samples.
func (s *EnvironmentService) fetchForecastSeries(ctx context.Context, lat, lon float64) ([]types.DaySample, error) {
	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%f", lat))
	params.Add("lon", fmt.Sprintf("%f", lon))
	params.Add("appid", s.cfg.ExternalServices.OpenWeatherKey)

	body, err := s.get(ctx, "forecast", fmt.Sprintf("%s/air_pollution/forecast?%s", s.pollutionBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}
	return decodeDailySeries(body, "forecast", s.cfg.Pipeline.ForecastDays)
}

// fetchHistorySeries aggregates the past week of hourly pollution data into
// daily maximum AQI samples, oldest first.
func (s *EnvironmentService) fetchHistorySeries(ctx context.Context, lat, lon float64) ([]types.DaySample, error) {
	end := s.now()
	start := end.AddDate(0, 0, -s.cfg.Pipeline.HistoryDays)

	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%f", lat))
	params.Add("lon", fmt.Sprintf("%f", lon))
	params.Add("start", fmt.Sprintf("%d", start.Unix()))
	params.Add("end", fmt.Sprintf("%d", end.Unix()))
	params.Add("appid", s.cfg.ExternalServices.OpenWeatherKey)

	body, err := s.get(ctx, "history", fmt.Sprintf("%s/air_pollution/history?%s", s.pollutionBaseURL, params.Encode()))
	if err != nil {
		return nil, err
	}
	return decodeDailySeries(body, "history", s.cfg.Pipeline.HistoryDays)
}

// decodeDailySeries folds the hourly {dt, main.aqi} list into per-day
// maximums on the 0-500 scale, sorted by date and bounded to maxDays.
func decodeDailySeries(body []byte, collaborator string, maxDays int) ([]types.DaySample, error) {
	var resp struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
		} `json:"list"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.DecodeFailed(collaborator, err, body)
	}

	daily := make(map[string]*types.DaySample)
	order := make([]string, 0)
	for _, item := range resp.List {
		t := time.Unix(item.Dt, 0)
		date := t.Format("2006-01-02")

		aqi, ok := owmAQIScale[item.Main.AQI]
		if !ok {
			aqi = 100
		}

		if sample, exists := daily[date]; exists {
			if aqi > sample.MaxAQI {
				sample.MaxAQI = aqi
			}
		} else {
			daily[date] = &types.DaySample{
				Day:    t.Format("Mon"),
				Date:   date,
				MaxAQI: aqi,
			}
			order = append(order, date)
		}
	}

	// The upstream list is chronological; preserving first-seen order keeps
	// the series sorted without re-sorting.
	series := make([]types.DaySample, 0, len(order))
	for _, date := range order {
		series = append(series, *daily[date])
	}
	if len(series) > maxDays {
		series = series[:maxDays]
	}
	return series, nil
}

// microZones simulates fine-grained AQI readings around the queried point.
// A granular sensor-network upstream would replace this.
func (s *EnvironmentService) microZones(lat, lon float64) []types.MicroZone {
	rng := rand.New(rand.NewSource(s.zoneSeed))

	kinds := []struct {
		name   string
		risk   string
		offset float64
		minAQI int
		maxAQI int
	}{
		{"Traffic Hotspot", "High", 0.005, 150, 350},
		{"Construction Zone", "Severe", 0.003, 150, 350},
		{"Industrial Belt", "High", 0.008, 150, 350},
		{"Green Zone (Park)", "Low", 0.004, 30, 80},
		{"Residential Area", "Moderate", 0.002, 80, 150},
		{"Coastal Wind Zone", "Low", 0.006, 30, 80},
	}

	count := 6 + rng.Intn(3)
	zones := make([]types.MicroZone, 0, count)
	for i := 0; i < count; i++ {
		kind := kinds[rng.Intn(len(kinds))]
		zones = append(zones, types.MicroZone{
			Lat:  lat + (rng.Float64()*2-1)*kind.offset,
			Lon:  lon + (rng.Float64()*2-1)*kind.offset,
			Type: kind.name,
			AQI:  kind.minAQI + rng.Intn(kind.maxAQI-kind.minAQI+1),
			Risk: kind.risk,
		})
	}
	return zones
}

// get performs an instrumented GET against an upstream, enforcing the
// transport-error and snippet contract.
func (s *EnvironmentService) get(ctx context.Context, collaborator, reqURL string) ([]byte, error) {
	log := logger.GetLogger()
	log.Debugw("Upstream fetch", "collaborator", collaborator, "url", logger.MaskUpstreamURL(reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", collaborator, err)
	}

	timer := prometheus.NewTimer(envFetchLatency.WithLabelValues(collaborator))
	resp, err := s.client.Do(req)
	timer.ObserveDuration()
	if err != nil {
		envUpstreamErrors.WithLabelValues(collaborator).Inc()
		return nil, errors.Wrap(err, errors.UpstreamError, fmt.Sprintf("%s request failed", collaborator))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		envUpstreamErrors.WithLabelValues(collaborator).Inc()
		return nil, errors.Wrap(err, errors.UpstreamError, fmt.Sprintf("%s response read failed", collaborator))
	}

	if resp.StatusCode != http.StatusOK {
		envUpstreamErrors.WithLabelValues(collaborator).Inc()
		return nil, errors.UpstreamFailed(collaborator, resp.StatusCode, body)
	}

	return body, nil
}

// CalculateAQI converts a PM2.5 concentration (µg/m³) to the US EPA AQI.
func CalculateAQI(pm25 float64) int {
	c := math.Round(pm25*10) / 10

	breakpoints := []struct {
		cLow, cHigh float64
		iLow, iHigh float64
	}{
		{0, 12.0, 0, 50},
		{12.1, 35.4, 51, 100},
		{35.5, 55.4, 101, 150},
		{55.5, 150.4, 151, 200},
		{150.5, 250.4, 201, 300},
		{250.5, 350.4, 301, 400},
		{350.5, 500.4, 401, 500},
	}

	if c < 0 {
		return 0
	}
	for _, bp := range breakpoints {
		if c <= bp.cHigh {
			return int(math.Round((bp.iHigh-bp.iLow)/(bp.cHigh-bp.cLow)*(c-bp.cLow) + bp.iLow))
		}
	}
	return 500
}

// CalculateCigarettes converts a PM2.5 concentration into the cigarette
// equivalent using the Berkeley Earth rule of thumb (1 cigarette ≈ 22 µg/m³
// of PM2.5 per day).
func CalculateCigarettes(pm25 float64) float64 {
	if pm25 <= 0 {
		return 0
	}
	return math.Round(pm25/22.0*10) / 10
}

// haversineKM returns the great-circle distance between two points in km.
func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKM = 6371

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
