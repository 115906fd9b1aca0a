package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
)

// IPLocationService approximates the caller's position from their IP
// address. Used as the fallback when device geolocation is unavailable.
type IPLocationService struct {
	client  *http.Client
	baseURL string
}

func NewIPLocationService(cfg *config.Config) *IPLocationService {
	return &IPLocationService{
		client: &http.Client{
			Timeout: time.Duration(cfg.Pipeline.UpstreamTimeoutSeconds) * time.Second,
		},
		baseURL: strings.TrimRight(cfg.ExternalServices.IPLookupURL, "/"),
	}
}

// Locate returns an approximate coordinate and, when known, a city name.
func (s *IPLocationService) Locate(ctx context.Context) (*types.ResolvedLocation, error) {
	log := logger.GetLogger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/json/", nil)
	if err != nil {
		return nil, fmt.Errorf("create IP lookup request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.UpstreamError, "IP lookup request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.UpstreamError, "IP lookup response read failed")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.UpstreamFailed("IP lookup", resp.StatusCode, body)
	}

	var result struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		City      string   `json:"city"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.DecodeFailed("IP lookup", err, body)
	}

	if result.Latitude == nil || result.Longitude == nil {
		return nil, errors.Domainf("IP lookup returned no coordinates")
	}

	log.Infow("Resolved location from IP", "city", result.City)
	return &types.ResolvedLocation{
		Coordinate: types.Coordinate{
			Latitude:  *result.Latitude,
			Longitude: *result.Longitude,
		},
		City:   result.City,
		Source: types.SourceIP,
	}, nil
}
