package dashboard

import (
	"context"
	"testing"

	"github.com/breathesafe/breathe-backend/config"
	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGeocoder struct{ mock.Mock }

func (m *mockGeocoder) Search(ctx context.Context, city, countryCode string) ([]types.GeocodeCandidate, error) {
	args := m.Called(ctx, city, countryCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.GeocodeCandidate), args.Error(1)
}

type mockIPLocator struct{ mock.Mock }

func (m *mockIPLocator) Locate(ctx context.Context) (*types.ResolvedLocation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ResolvedLocation), args.Error(1)
}

type mockDevice struct{ mock.Mock }

func (m *mockDevice) CurrentPosition(ctx context.Context) (*types.Coordinate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Coordinate), args.Error(1)
}

func resolverConfig() config.PipelineConfig {
	return config.PipelineConfig{GeolocationTimeoutSeconds: 1, UpstreamTimeoutSeconds: 1}
}

func TestFromSearchSingleCandidateAutoProceeds(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Reykjavik", "").Return([]types.GeocodeCandidate{
		{Name: "Reykjavik", Country: "IS", Lat: 64.15, Lon: -21.94},
	}, nil)

	r := NewResolver(geo, new(mockIPLocator), nil, resolverConfig())
	result, err := r.FromSearch(context.Background(), types.PlaceQuery{City: "Reykjavik"})

	require.NoError(t, err)
	require.NotNil(t, result.Location)
	assert.Empty(t, result.Candidates)
	assert.Equal(t, "Reykjavik", result.Location.City)
	assert.Equal(t, types.SourceSearch, result.Location.Source)
	assert.Equal(t, 64.15, result.Location.Coordinate.Latitude)
}

func TestFromSearchMultipleCandidatesReturnedForChoice(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Springfield", "US").Return([]types.GeocodeCandidate{
		{Name: "Springfield", State: "Illinois", Country: "US"},
		{Name: "Springfield", State: "Missouri", Country: "US"},
	}, nil)

	r := NewResolver(geo, new(mockIPLocator), nil, resolverConfig())
	result, err := r.FromSearch(context.Background(), types.PlaceQuery{City: "Springfield", CountryCode: "US"})

	require.NoError(t, err)
	assert.Nil(t, result.Location)
	assert.Len(t, result.Candidates, 2)
}

func TestFromSearchZeroCandidatesIsNotFound(t *testing.T) {
	geo := new(mockGeocoder)
	geo.On("Search", mock.Anything, "Xyzzyville", "").Return([]types.GeocodeCandidate{}, nil)

	r := NewResolver(geo, new(mockIPLocator), nil, resolverConfig())
	_, err := r.FromSearch(context.Background(), types.PlaceQuery{City: "Xyzzyville"})

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.NotFoundError, appErr.Type)
}

func TestFromSearchEmptyCityRejected(t *testing.T) {
	geo := new(mockGeocoder)
	r := NewResolver(geo, new(mockIPLocator), nil, resolverConfig())

	_, err := r.FromSearch(context.Background(), types.PlaceQuery{})
	require.Error(t, err)
	geo.AssertNotCalled(t, "Search")
}

func TestFromDeviceSuccessSkipsIP(t *testing.T) {
	device := new(mockDevice)
	device.On("CurrentPosition", mock.Anything).Return(&types.Coordinate{Latitude: 48.85, Longitude: 2.35}, nil)
	ip := new(mockIPLocator)

	r := NewResolver(new(mockGeocoder), ip, device, resolverConfig())
	loc, err := r.FromDevice(context.Background())

	require.NoError(t, err)
	assert.Equal(t, types.SourceDevice, loc.Source)
	assert.Equal(t, 48.85, loc.Coordinate.Latitude)
	ip.AssertNotCalled(t, "Locate")
}

func TestFromDevicePermissionDeniedIsTerminal(t *testing.T) {
	device := new(mockDevice)
	device.On("CurrentPosition", mock.Anything).
		Return(nil, &types.GeoError{Reason: types.GeoPermissionDenied})
	ip := new(mockIPLocator)

	r := NewResolver(new(mockGeocoder), ip, device, resolverConfig())
	_, err := r.FromDevice(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	// Denial means the user said no: no IP lookup either.
	ip.AssertNotCalled(t, "Locate")
}

func TestFromDeviceTimeoutFallsBackToIPOnce(t *testing.T) {
	device := new(mockDevice)
	device.On("CurrentPosition", mock.Anything).
		Return(nil, &types.GeoError{Reason: types.GeoTimeout})
	ip := new(mockIPLocator)
	ip.On("Locate", mock.Anything).Return(&types.ResolvedLocation{
		Coordinate: types.Coordinate{Latitude: 51.5, Longitude: -0.12},
		City:       "London",
		Source:     types.SourceIP,
	}, nil).Once()

	r := NewResolver(new(mockGeocoder), ip, device, resolverConfig())
	loc, err := r.FromDevice(context.Background())

	require.NoError(t, err)
	assert.Equal(t, types.SourceIP, loc.Source)
	ip.AssertNumberOfCalls(t, "Locate", 1)
}

func TestFromDeviceBothPathsFailCombinedError(t *testing.T) {
	device := new(mockDevice)
	device.On("CurrentPosition", mock.Anything).
		Return(nil, &types.GeoError{Reason: types.GeoPositionUnavailable})
	ip := new(mockIPLocator)
	ip.On("Locate", mock.Anything).
		Return(nil, apperrors.Domainf("IP lookup returned no coordinates")).Once()

	r := NewResolver(new(mockGeocoder), ip, device, resolverConfig())
	_, err := r.FromDevice(context.Background())

	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	// A single error naming both failures, not two separate surfacing paths.
	assert.Contains(t, appErr.Detail, "device:")
	assert.Contains(t, appErr.Detail, "ip:")
	ip.AssertNumberOfCalls(t, "Locate", 1)
}

func TestFromDeviceWithoutDeviceGoesToIP(t *testing.T) {
	ip := new(mockIPLocator)
	ip.On("Locate", mock.Anything).Return(&types.ResolvedLocation{
		City:   "Berlin",
		Source: types.SourceIP,
	}, nil)

	r := NewResolver(new(mockGeocoder), ip, nil, resolverConfig())
	loc, err := r.FromDevice(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "Berlin", loc.City)
}
