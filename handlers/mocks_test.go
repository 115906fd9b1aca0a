package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/internal/dashboard"
	"github.com/breathesafe/breathe-backend/middleware"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
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

type mockAssistant struct{ mock.Mock }

func (m *mockAssistant) Chat(ctx context.Context, query string, env types.EnvironmentRecord) (string, error) {
	args := m.Called(ctx, query, env)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) CommuteAdvice(ctx context.Context, env types.EnvironmentRecord, forecast []types.DaySample) (string, error) {
	args := m.Called(ctx, env, forecast)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) CompareHistory(ctx context.Context, env types.EnvironmentRecord, history []types.DaySample) (string, error) {
	args := m.Called(ctx, env, history)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) AnalyzeSkyImage(ctx context.Context, imageData []byte, mimeType string, env types.EnvironmentRecord) (string, error) {
	args := m.Called(ctx, imageData, mimeType, env)
	return args.String(0), args.Error(1)
}

// stub collaborators for building a real session in handler tests

type stubEnvFetcher struct {
	report *types.EnvironmentReport
	err    error
	calls  atomic.Int32
}

func (s *stubEnvFetcher) GetReport(ctx context.Context, lat, lon float64, city string) (*types.EnvironmentReport, error) {
	s.calls.Add(1)
	return s.report, s.err
}

type stubNewsFetcher struct{}

func (stubNewsFetcher) GetCityNews(ctx context.Context, city string) ([]types.NewsItem, error) {
	return []types.NewsItem{{Title: city + " air worsens"}}, nil
}

type stubAdvisoryProvider struct{}

func (stubAdvisoryProvider) GetAdvisory(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord {
	return &types.AdvisoryRecord{HealthAdvice: "advice"}
}

type stubSupportProvider struct{}

func (stubSupportProvider) GetEmergencyInfo(ctx context.Context, city, countryCode string) types.SupportRecord {
	return types.SupportRecord{General: "112"}
}

func settledSession(report *types.EnvironmentReport, envErr error) *dashboard.Session {
	s, _ := sessionWithFetcher(&stubEnvFetcher{report: report, err: envErr})
	return s
}

func sessionWithFetcher(fetcher *stubEnvFetcher) (*dashboard.Session, *stubEnvFetcher) {
	s := dashboard.NewSession(
		fetcher,
		stubNewsFetcher{},
		stubAdvisoryProvider{},
		stubSupportProvider{},
		config.PipelineConfig{UpstreamTimeoutSeconds: 2},
	)
	return s, fetcher
}

func settleQuery(s *dashboard.Session, loc types.ResolvedLocation) {
	token := s.Query(loc)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = s.WaitSettled(ctx, token)
}

func newTestRouter(register func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	register(r)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
