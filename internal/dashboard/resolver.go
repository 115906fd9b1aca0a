package dashboard

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
)

// GeocodeSearcher resolves a place search to candidates.
type GeocodeSearcher interface {
	Search(ctx context.Context, city, countryCode string) ([]types.GeocodeCandidate, error)
}

// IPLocator approximates the caller's position from their network address.
type IPLocator interface {
	Locate(ctx context.Context) (*types.ResolvedLocation, error)
}

// DeviceLocator reads a precise position from the caller's device. A
// deployment without device positioning wires in nil and the resolver goes
// straight to IP fallback.
type DeviceLocator interface {
	CurrentPosition(ctx context.Context) (*types.Coordinate, error)
}

// Resolver turns user intent (a search, a "use my location" press) into
// exactly one ResolvedLocation, or a precise reason why it could not.
type Resolver struct {
	geocode GeocodeSearcher
	ip      IPLocator
	device  DeviceLocator
	cfg     config.PipelineConfig
}

func NewResolver(geocode GeocodeSearcher, ip IPLocator, device DeviceLocator, cfg config.PipelineConfig) *Resolver {
	return &Resolver{geocode: geocode, ip: ip, device: device, cfg: cfg}
}

// SearchResult is the outcome of a place search: either a resolved
// location (exactly one match) or the candidate list the user must choose
// from.
type SearchResult struct {
	Location   *types.ResolvedLocation
	Candidates []types.GeocodeCandidate
}

// FromSearch resolves a typed place query. Zero candidates is a not-found
// error and nothing downstream runs; one candidate proceeds without
// confirmation; several candidates are returned for disambiguation.
func (r *Resolver) FromSearch(ctx context.Context, query types.PlaceQuery) (*SearchResult, error) {
	if query.City == "" {
		return nil, errors.ValidationFailed("city is required", "")
	}

	candidates, err := r.geocode.Search(ctx, query.City, query.CountryCode)
	if err != nil {
		return nil, err
	}

	switch len(candidates) {
	case 0:
		return nil, errors.NotFound("Location", query.City)
	case 1:
		return &SearchResult{Location: r.FromCandidate(candidates[0])}, nil
	default:
		return &SearchResult{Candidates: candidates}, nil
	}
}

// FromCandidate accepts the user's pick from a disambiguation list.
func (r *Resolver) FromCandidate(c types.GeocodeCandidate) *types.ResolvedLocation {
	return &types.ResolvedLocation{
		Coordinate: types.Coordinate{Latitude: c.Lat, Longitude: c.Lon},
		City:       c.Name,
		Source:     types.SourceSearch,
	}
}

// FromDevice reads the device position, falling back to IP lookup exactly
// once when the device cannot deliver. Permission denial is terminal: the
// user said no, so no other lookup runs. When both paths fail the combined
// error names both causes.
func (r *Resolver) FromDevice(ctx context.Context) (*types.ResolvedLocation, error) {
	loc, deviceErr := r.tryDevice(ctx)
	if deviceErr == nil {
		return loc, nil
	}
	return r.ResolveDeviceFailure(ctx, deviceErr)
}

// ResolveDeviceFailure applies the fallback policy to a classified device
// failure. It also serves deployments where the device reading happens
// client-side and only the failure is reported to the server.
func (r *Resolver) ResolveDeviceFailure(ctx context.Context, deviceErr error) (*types.ResolvedLocation, error) {
	log := logger.GetLogger()

	var geoErr *types.GeoError
	if stderrors.As(deviceErr, &geoErr) && geoErr.Reason == types.GeoPermissionDenied {
		return nil, errors.Wrap(deviceErr, errors.ValidationError, "location permission denied")
	}

	log.Infow("Device location unavailable, trying IP fallback", "cause", deviceErr)

	loc, ipErr := r.ip.Locate(ctx)
	if ipErr != nil {
		return nil, errors.Wrap(
			fmt.Errorf("device: %v; ip: %v", deviceErr, ipErr),
			errors.UpstreamError,
			"could not determine location",
		)
	}
	return loc, nil
}

// FromIP resolves via IP lookup directly, without consulting the device.
func (r *Resolver) FromIP(ctx context.Context) (*types.ResolvedLocation, error) {
	return r.ip.Locate(ctx)
}

func (r *Resolver) tryDevice(ctx context.Context) (*types.ResolvedLocation, error) {
	if r.device == nil {
		return nil, &types.GeoError{Reason: types.GeoPositionUnavailable}
	}

	timeout := time.Duration(r.cfg.GeolocationTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	coord, err := r.device.CurrentPosition(ctx)
	if err != nil {
		var geoErr *types.GeoError
		if stderrors.As(err, &geoErr) {
			return nil, err
		}
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &types.GeoError{Reason: types.GeoTimeout, Err: err}
		}
		return nil, &types.GeoError{Reason: types.GeoUnknown, Err: err}
	}

	return &types.ResolvedLocation{
		Coordinate: *coord,
		Source:     types.SourceDevice,
	}, nil
}
