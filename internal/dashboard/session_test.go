package dashboard

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnv struct {
	fn func(ctx context.Context, lat, lon float64, city string) (*types.EnvironmentReport, error)
}

func (s *stubEnv) GetReport(ctx context.Context, lat, lon float64, city string) (*types.EnvironmentReport, error) {
	return s.fn(ctx, lat, lon, city)
}

type stubNews struct {
	fn func(ctx context.Context, city string) ([]types.NewsItem, error)
}

func (s *stubNews) GetCityNews(ctx context.Context, city string) ([]types.NewsItem, error) {
	return s.fn(ctx, city)
}

type stubAdvisory struct {
	fn func(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord
}

func (s *stubAdvisory) GetAdvisory(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord {
	return s.fn(ctx, env)
}

type stubSupport struct {
	fn func(ctx context.Context, city, countryCode string) types.SupportRecord
}

func (s *stubSupport) GetEmergencyInfo(ctx context.Context, city, countryCode string) types.SupportRecord {
	return s.fn(ctx, city, countryCode)
}

func sampleReport(city string, aqi int) *types.EnvironmentReport {
	return &types.EnvironmentReport{
		Environment: types.EnvironmentRecord{
			City: city,
			AQI:  aqi,
			Pollutants: map[string]types.Pollutant{
				"PM2.5": {Concentration: 95},
				"PM10":  {Concentration: 60},
			},
		},
		Forecast: []types.DaySample{
			{Day: "Mon", Date: "2025-01-06", MaxAQI: 120},
			{Day: "Tue", Date: "2025-01-07", MaxAQI: 80},
		},
		History: []types.DaySample{
			{Day: "Sun", Date: "2025-01-05", MaxAQI: 180},
		},
	}
}

func happySession(city string, aqi int) *Session {
	env := &stubEnv{fn: func(ctx context.Context, lat, lon float64, override string) (*types.EnvironmentReport, error) {
		return sampleReport(city, aqi), nil
	}}
	news := &stubNews{fn: func(ctx context.Context, c string) ([]types.NewsItem, error) {
		return []types.NewsItem{{Title: c + " smog worsens"}}, nil
	}}
	advisory := &stubAdvisory{fn: func(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord {
		return &types.AdvisoryRecord{HealthAdvice: "Stay indoors.", DailyPlan: &types.DailyPlan{MaskLevel: "N95 or KN95"}}
	}}
	support := &stubSupport{fn: func(ctx context.Context, c, cc string) types.SupportRecord {
		return types.SupportRecord{General: "112"}
	}}
	return NewSession(env, news, advisory, support, config.PipelineConfig{UpstreamTimeoutSeconds: 2})
}

func TestQuerySettlesAllSections(t *testing.T) {
	s := happySession("Delhi", 180)

	token := s.Query(types.ResolvedLocation{City: "Delhi", Source: types.SourceSearch})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	view, err := s.WaitSettled(ctx, token)
	require.NoError(t, err)

	for _, name := range []string{SectionEnvironment, SectionNews, SectionAdvisory, SectionSupport} {
		assert.Equal(t, SectionReady, view.Sections[name].Status, name)
	}

	require.NotNil(t, view.Report)
	assert.Equal(t, "Delhi", view.Report.Environment.City)
	assert.Equal(t, "Hazardous", view.Risk.Label)
	assert.Equal(t, "PM2.5", view.DominantPollutant)
	assert.Equal(t, "Mon (2025-01-06)", view.Report.ForecastAnalysis.WorstDay)
	require.Len(t, view.Report.News, 1)
	assert.Equal(t, "Stay indoors.", view.Report.HealthAdvice)
	require.NotNil(t, view.Report.EmergencyInfo)
	assert.Equal(t, "112", view.Report.EmergencyInfo.General)
}

func TestNewQuerySupersedesSlowOne(t *testing.T) {
	release := make(chan struct{})
	calls := make(chan string, 2)

	env := &stubEnv{fn: func(ctx context.Context, lat, lon float64, override string) (*types.EnvironmentReport, error) {
		calls <- override
		if override == "SlowCity" {
			<-release
			return sampleReport("SlowCity", 400), nil
		}
		return sampleReport("FastCity", 60), nil
	}}
	news := &stubNews{fn: func(ctx context.Context, c string) ([]types.NewsItem, error) { return nil, nil }}
	advisory := &stubAdvisory{fn: func(ctx context.Context, e types.EnvironmentRecord) *types.AdvisoryRecord {
		return &types.AdvisoryRecord{}
	}}
	support := &stubSupport{fn: func(ctx context.Context, c, cc string) types.SupportRecord {
		return types.SupportRecord{}
	}}
	s := NewSession(env, news, advisory, support, config.PipelineConfig{UpstreamTimeoutSeconds: 2})

	tokenA := s.Query(types.ResolvedLocation{City: "SlowCity"})
	<-calls // slow query is in flight

	tokenB := s.Query(types.ResolvedLocation{City: "FastCity"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The superseded waiter learns it was replaced, it never sees B's data.
	_, err := s.WaitSettled(ctx, tokenA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "superseded")

	view, err := s.WaitSettled(ctx, tokenB)
	require.NoError(t, err)
	assert.Equal(t, "FastCity", view.Report.Environment.City)

	// Let the slow fetch finish; its delivery must be dropped.
	close(release)
	time.Sleep(50 * time.Millisecond)

	current := s.Render()
	assert.Equal(t, "FastCity", current.Report.Environment.City)
	assert.Equal(t, 60, current.Report.Environment.AQI)
}

func TestEnvironmentFailureFailsDependentSections(t *testing.T) {
	env := &stubEnv{fn: func(ctx context.Context, lat, lon float64, override string) (*types.EnvironmentReport, error) {
		return nil, apperrors.UpstreamFailed("weather", 503, []byte("unavailable"))
	}}
	s := NewSession(env, nil, nil, nil, config.PipelineConfig{UpstreamTimeoutSeconds: 2})

	token := s.Query(types.ResolvedLocation{City: "Delhi"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.WaitSettled(ctx, token)
	require.Error(t, err)

	view := s.Render()
	assert.Equal(t, SectionFailed, view.Sections[SectionEnvironment].Status)
	assert.Equal(t, SectionFailed, view.Sections[SectionNews].Status)
	assert.Equal(t, SectionFailed, view.Sections[SectionAdvisory].Status)
	assert.Equal(t, SectionFailed, view.Sections[SectionSupport].Status)
	assert.Nil(t, view.Report)
}

func TestEnvironmentFailureKeepsErrorClassification(t *testing.T) {
	cases := []struct {
		name     string
		fetchErr *apperrors.AppError
	}{
		{"decode", apperrors.DecodeFailed("weather", stderrors.New("invalid character '<'"), []byte("<html>"))},
		{"transport", apperrors.UpstreamFailed("weather", 503, []byte("unavailable"))},
		{"domain", apperrors.Domainf("no air quality data for this location")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := &stubEnv{fn: func(ctx context.Context, lat, lon float64, override string) (*types.EnvironmentReport, error) {
				return nil, tc.fetchErr
			}}
			s := NewSession(env, nil, nil, nil, config.PipelineConfig{UpstreamTimeoutSeconds: 2})

			token := s.Query(types.ResolvedLocation{City: "Delhi"})

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := s.WaitSettled(ctx, token)
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.fetchErr.Type, appErr.Type)
			assert.Equal(t, tc.fetchErr.Message, appErr.Message)
		})
	}
}

func TestSecondarySectionFailureIsIsolated(t *testing.T) {
	env := &stubEnv{fn: func(ctx context.Context, lat, lon float64, override string) (*types.EnvironmentReport, error) {
		return sampleReport("Delhi", 180), nil
	}}
	news := &stubNews{fn: func(ctx context.Context, c string) ([]types.NewsItem, error) {
		return nil, apperrors.UpstreamFailed("news feed", 502, nil)
	}}
	advisory := &stubAdvisory{fn: func(ctx context.Context, e types.EnvironmentRecord) *types.AdvisoryRecord {
		return &types.AdvisoryRecord{HealthAdvice: "advice"}
	}}
	support := &stubSupport{fn: func(ctx context.Context, c, cc string) types.SupportRecord {
		return types.SupportRecord{General: "112"}
	}}
	s := NewSession(env, news, advisory, support, config.PipelineConfig{UpstreamTimeoutSeconds: 2})

	token := s.Query(types.ResolvedLocation{City: "Delhi"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	view, err := s.WaitSettled(ctx, token)
	require.NoError(t, err)

	assert.Equal(t, SectionFailed, view.Sections[SectionNews].Status)
	assert.NotEmpty(t, view.Sections[SectionNews].Error)
	assert.Equal(t, SectionReady, view.Sections[SectionAdvisory].Status)
	assert.Equal(t, SectionReady, view.Sections[SectionSupport].Status)
	assert.Empty(t, view.Report.News)
	assert.Equal(t, "advice", view.Report.HealthAdvice)
}

func TestRenderIsIdempotent(t *testing.T) {
	s := happySession("Delhi", 180)
	token := s.Query(types.ResolvedLocation{City: "Delhi"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.WaitSettled(ctx, token)
	require.NoError(t, err)

	first := s.Render()
	second := s.Render()
	assert.Equal(t, first, second)

	// Mutating a rendered view must not leak into the session state.
	first.Report.Environment.City = "Tampered"
	third := s.Render()
	assert.Equal(t, "Delhi", third.Report.Environment.City)
}

func TestCurrentEnvironmentGatesTools(t *testing.T) {
	s := happySession("Delhi", 180)

	_, err := s.CurrentEnvironment()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.NoLocationError, appErr.Type)

	token := s.Query(types.ResolvedLocation{City: "Delhi"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = s.WaitSettled(ctx, token)
	require.NoError(t, err)

	env, err := s.CurrentEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "Delhi", env.City)

	forecast, history, err := s.CurrentSeries()
	require.NoError(t, err)
	assert.Len(t, forecast, 2)
	assert.Len(t, history, 1)
}

func TestRenderBeforeAnyQuery(t *testing.T) {
	s := happySession("Delhi", 180)
	view := s.Render()
	assert.Nil(t, view.Report)
	assert.Nil(t, view.Location)
	assert.Empty(t, view.Sections)
}
