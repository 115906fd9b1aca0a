package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
)

const geocodeCandidateLimit = 5

// GeocodeService resolves place names to coordinates via the OpenWeather
// direct geocoding API.
type GeocodeService struct {
	client  *http.Client
	apiKey  string
	baseURL string
}

func NewGeocodeService(cfg *config.Config) *GeocodeService {
	return &GeocodeService{
		client: &http.Client{
			Timeout: time.Duration(cfg.Pipeline.UpstreamTimeoutSeconds) * time.Second,
		},
		apiKey:  cfg.ExternalServices.OpenWeatherKey,
		baseURL: "https://api.openweathermap.org/geo/1.0",
	}
}

// SetBaseURL points the service at a different upstream. Used by tests.
func (s *GeocodeService) SetBaseURL(u string) {
	s.baseURL = u
}

// Search returns up to five candidates for a city name with an optional
// country code. An empty result is not an error here; the resolver decides
// how to surface it.
func (s *GeocodeService) Search(ctx context.Context, city, countryCode string) ([]types.GeocodeCandidate, error) {
	log := logger.GetLogger()

	query := city
	if countryCode != "" {
		query = fmt.Sprintf("%s,%s", city, countryCode)
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("limit", fmt.Sprintf("%d", geocodeCandidateLimit))
	params.Add("appid", s.apiKey)

	reqURL := fmt.Sprintf("%s/direct?%s", s.baseURL, params.Encode())
	log.Debugw("Geocoding search", "url", logger.MaskUpstreamURL(reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create geocoding request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.UpstreamError, "geocoding request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.UpstreamError, "geocoding response read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.UpstreamFailed("geocoding", resp.StatusCode, body)
	}

	var results []struct {
		Name    string  `json:"name"`
		State   string  `json:"state"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, errors.DecodeFailed("geocoding", err, body)
	}

	candidates := make([]types.GeocodeCandidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, types.GeocodeCandidate{
			Name:    r.Name,
			State:   r.State,
			Country: r.Country,
			Lat:     r.Lat,
			Lon:     r.Lon,
		})
	}

	log.Debugw("Geocoding search complete", "query", query, "candidates", len(candidates))
	return candidates, nil
}
