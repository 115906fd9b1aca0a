package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/breathesafe/breathe-backend/config"
	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/types"
)

// EnvironmentFetcher produces the primary environment report for a
// coordinate.
type EnvironmentFetcher interface {
	GetReport(ctx context.Context, lat, lon float64, cityOverride string) (*types.EnvironmentReport, error)
}

// NewsFetcher produces the headline section for a city.
type NewsFetcher interface {
	GetCityNews(ctx context.Context, city string) ([]types.NewsItem, error)
}

// AdvisoryProvider produces the health guidance section.
type AdvisoryProvider interface {
	GetAdvisory(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord
}

// SupportProvider produces the emergency contact section.
type SupportProvider interface {
	GetEmergencyInfo(ctx context.Context, city, countryCode string) types.SupportRecord
}

// SectionStatus is the lifecycle of one dashboard section.
type SectionStatus string

const (
	SectionPending SectionStatus = "pending"
	SectionReady   SectionStatus = "ready"
	SectionFailed  SectionStatus = "failed"
)

// Section names as they appear in views.
const (
	SectionEnvironment = "environment"
	SectionNews        = "news"
	SectionAdvisory    = "advisory"
	SectionSupport     = "support"
)

// SectionView reports one section's status and, when failed, why.
type SectionView struct {
	Status SectionStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// View is a rendered snapshot of the session. Rendering reads state and
// never changes it: rendering the same settled state twice yields the
// same view.
type View struct {
	Location          *types.ResolvedLocation  `json:"location,omitempty"`
	Report            *types.EnvironmentReport `json:"report,omitempty"`
	Risk              *RiskBand                `json:"risk,omitempty"`
	DominantPollutant string                   `json:"dominant_pollutant,omitempty"`
	Sections          map[string]SectionView   `json:"sections"`
}

// queryState is everything accumulated for one location query. It is only
// written while it is the session's current query; a successor leaves it
// frozen.
type queryState struct {
	token    uint64
	location types.ResolvedLocation

	report   *types.EnvironmentReport
	envErr   error
	news     []types.NewsItem
	advisory *types.AdvisoryRecord
	support  *types.SupportRecord

	sections   map[string]*SectionView
	pending    int
	superseded bool

	done      chan struct{}
	closeDone sync.Once
	cancel    context.CancelFunc
}

func (q *queryState) settle() {
	q.closeDone.Do(func() { close(q.done) })
}

// Session owns one user's dashboard: the current location query and the
// sections fanned out from it. Results are tagged with the query token
// they belong to; a delivery whose token is no longer current is
// discarded, so a slow response for an old location can never overwrite a
// newer one.
type Session struct {
	mu  sync.Mutex
	seq uint64
	cur *queryState

	env      EnvironmentFetcher
	news     NewsFetcher
	advisory AdvisoryProvider
	support  SupportProvider

	queryTimeout time.Duration
}

func NewSession(env EnvironmentFetcher, news NewsFetcher, advisory AdvisoryProvider, support SupportProvider, cfg config.PipelineConfig) *Session {
	// The whole fan-out gets a few upstream budgets; any single slow
	// collaborator fails its own section, not the query.
	return &Session{
		env:          env,
		news:         news,
		advisory:     advisory,
		support:      support,
		queryTimeout: time.Duration(cfg.UpstreamTimeoutSeconds) * 4 * time.Second,
	}
}

// Query starts resolving a new location. Any in-flight query is superseded
// immediately: its context is cancelled and late deliveries are dropped.
// Returns the token identifying this query.
func (s *Session) Query(loc types.ResolvedLocation) uint64 {
	ctx, cancel := context.WithTimeout(context.Background(), s.queryTimeout)

	s.mu.Lock()
	if old := s.cur; old != nil {
		old.superseded = true
		if old.cancel != nil {
			old.cancel()
		}
		old.settle()
	}

	s.seq++
	state := &queryState{
		token:    s.seq,
		location: loc,
		sections: map[string]*SectionView{
			SectionEnvironment: {Status: SectionPending},
			SectionNews:        {Status: SectionPending},
			SectionAdvisory:    {Status: SectionPending},
			SectionSupport:     {Status: SectionPending},
		},
		pending: 4,
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	s.cur = state
	token := state.token
	s.mu.Unlock()

	go s.run(ctx, state, loc)
	return token
}

func (s *Session) run(ctx context.Context, state *queryState, loc types.ResolvedLocation) {
	log := logger.GetLogger()
	defer state.cancel()

	report, err := s.env.GetReport(ctx, loc.Coordinate.Latitude, loc.Coordinate.Longitude, loc.City)
	if err != nil {
		log.Warnw("Environment fetch failed", "error", err,
			"lat", loc.Coordinate.Latitude, "lon", loc.Coordinate.Longitude)
		s.deliver(state, SectionEnvironment, func(q *queryState) error {
			q.envErr = err
			return err
		})
		// No environment means the dependent sections can never run.
		skip := errors.Domainf("environment data unavailable")
		s.deliver(state, SectionNews, func(q *queryState) error { return skip })
		s.deliver(state, SectionAdvisory, func(q *queryState) error { return skip })
		s.deliver(state, SectionSupport, func(q *queryState) error { return skip })
		return
	}

	report.ForecastAnalysis = AnalyzeSeries(report.Forecast)

	delivered := s.deliver(state, SectionEnvironment, func(q *queryState) error {
		q.report = report
		return nil
	})
	if !delivered {
		return
	}

	env := report.Environment

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		items, err := s.news.GetCityNews(ctx, env.City)
		s.deliver(state, SectionNews, func(q *queryState) error {
			if err != nil {
				return err
			}
			q.news = items
			return nil
		})
	}()

	go func() {
		defer wg.Done()
		record := s.advisory.GetAdvisory(ctx, env)
		s.deliver(state, SectionAdvisory, func(q *queryState) error {
			q.advisory = record
			return nil
		})
	}()

	go func() {
		defer wg.Done()
		record := s.support.GetEmergencyInfo(ctx, env.City, env.Country)
		s.deliver(state, SectionSupport, func(q *queryState) error {
			q.support = &record
			return nil
		})
	}()

	wg.Wait()
}

// deliver applies a section result to its query, unless that query has
// been superseded. Reports whether the delivery landed.
func (s *Session) deliver(state *queryState, section string, apply func(*queryState) error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.token != state.token || state.superseded {
		logger.GetLogger().Debugw("Dropping stale section delivery",
			"section", section, "token", state.token)
		return false
	}

	view := state.sections[section]
	if err := apply(state); err != nil {
		view.Status = SectionFailed
		view.Error = err.Error()
	} else {
		view.Status = SectionReady
	}

	state.pending--
	if state.pending <= 0 {
		state.settle()
	}
	return true
}

// WaitSettled blocks until the query identified by token has settled (all
// sections delivered or the query was superseded), then renders it. A
// superseded query yields a domain error rather than a stale view.
func (s *Session) WaitSettled(ctx context.Context, token uint64) (*View, error) {
	s.mu.Lock()
	state := s.cur
	s.mu.Unlock()

	if state == nil || state.token != token {
		return nil, errors.Domainf("query %d was superseded", token)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-state.done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state.superseded {
		return nil, errors.Domainf("query %d was superseded", token)
	}
	if state.sections[SectionEnvironment].Status == SectionFailed {
		// Return the fetch error as classified: a decode failure and a
		// transport failure are not the same thing to the client.
		if state.envErr != nil {
			return nil, state.envErr
		}
		return nil, errors.Domainf("%s", state.sections[SectionEnvironment].Error)
	}
	return renderLocked(state), nil
}

// Render returns the current view without waiting: pending sections show
// as pending. With no query yet, the view is empty with all sections
// pending-free.
func (s *Session) Render() *View {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return &View{Sections: map[string]SectionView{}}
	}
	return renderLocked(s.cur)
}

// CurrentEnvironment returns the settled environment record, gating the
// assistant tools: without a located environment there is nothing to talk
// about.
func (s *Session) CurrentEnvironment() (types.EnvironmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.report == nil {
		return types.EnvironmentRecord{}, errors.NoLocationData()
	}
	return s.cur.report.Environment, nil
}

// CurrentSeries returns the settled forecast and history series for the
// assistant's commute and history tools.
func (s *Session) CurrentSeries() (forecast, history []types.DaySample, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.report == nil {
		return nil, nil, errors.NoLocationData()
	}
	return s.cur.report.Forecast, s.cur.report.History, nil
}

// AnalyzeCurrentSeries derives the worst/best summary for either held
// series. Switching between forecast and history is a pure re-derivation
// from data the session already holds; it never refetches.
func (s *Session) AnalyzeCurrentSeries(kind string) ([]types.DaySample, types.SeriesAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil || s.cur.report == nil {
		return nil, types.SeriesAnalysis{}, errors.NoLocationData()
	}

	switch kind {
	case "", "forecast":
		return s.cur.report.Forecast, AnalyzeSeries(s.cur.report.Forecast), nil
	case "history":
		return s.cur.report.History, AnalyzeSeries(s.cur.report.History), nil
	default:
		return nil, types.SeriesAnalysis{}, errors.ValidationFailed("unknown series", kind)
	}
}

// renderLocked builds a view from state. Callers hold s.mu. The report is
// copied so section data merges never mutate the stored state.
func renderLocked(state *queryState) *View {
	sections := make(map[string]SectionView, len(state.sections))
	for name, view := range state.sections {
		sections[name] = *view
	}

	view := &View{
		Location: &state.location,
		Sections: sections,
	}

	if state.report != nil {
		report := *state.report
		report.News = state.news
		if state.advisory != nil {
			report.HealthAdvice = state.advisory.HealthAdvice
			report.Sources = state.advisory.Sources
			report.SourceNarrative = state.advisory.SourceNarrative
			report.DailyPlan = state.advisory.DailyPlan
		}
		report.EmergencyInfo = state.support

		risk := RiskLevel(report.Environment.AQI)
		view.Report = &report
		view.Risk = &risk
		view.DominantPollutant = DominantPollutant(report.Environment.Pollutants)
	}

	return view
}
