package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/pkg/ai"
	"github.com/breathesafe/breathe-backend/types"
)

var (
	morningPlanRe   = regexp.MustCompile(`(?is)### Morning Plan\s*(.*?)(?:\n\s*###|\z)`)
	afternoonPlanRe = regexp.MustCompile(`(?is)### Afternoon Plan\s*(.*?)(?:\n\s*###|\z)`)
	eveningPlanRe   = regexp.MustCompile(`(?is)### Evening Plan\s*(.*?)(?:\n\s*###|\z)`)
)

// AdvisoryService turns an environment record into health guidance: a
// model-written markdown briefing, a structured daily plan, and a pollution
// source attribution.
type AdvisoryService struct {
	assistant ai.ClientInterface
}

func NewAdvisoryService(assistant ai.ClientInterface) *AdvisoryService {
	return &AdvisoryService{assistant: assistant}
}

// GetAdvisory never fails: when the assistant is unreachable, the advice
// text degrades to a notice and the daily plan falls back to rule-based
// content. The dashboard always has a plan to show.
func (s *AdvisoryService) GetAdvisory(ctx context.Context, env types.EnvironmentRecord) *types.AdvisoryRecord {
	log := logger.GetLogger()

	advice, err := s.requestAdvice(ctx, env)
	if err != nil {
		log.Warnw("Health advice generation failed", "city", env.City, "error", err)
		advice = fmt.Sprintf("Health advice unavailable (Error: %v).", err)
	}

	sources, narrative := inferPollutionSources(env)
	plan := BuildDailyPlan(env.AQI, advice)

	return &types.AdvisoryRecord{
		HealthAdvice:    advice,
		Sources:         sources,
		SourceNarrative: narrative,
		DailyPlan:       &plan,
	}
}

func (s *AdvisoryService) requestAdvice(ctx context.Context, env types.EnvironmentRecord) (string, error) {
	if s.assistant == nil {
		return "", fmt.Errorf("assistant not configured")
	}

	riskLevel := "Good"
	switch {
	case env.AQI > 300:
		riskLevel = "Hazardous"
	case env.AQI > 200:
		riskLevel = "Very Unhealthy"
	case env.AQI > 150:
		riskLevel = "Unhealthy"
	case env.AQI > 100:
		riskLevel = "Moderate"
	}

	var pollutants strings.Builder
	for _, code := range types.PollutantCandidates {
		if p, ok := env.Pollutants[code]; ok {
			fmt.Fprintf(&pollutants, "- %s: %.1f\n", code, p.Concentration)
		}
	}

	prompt := fmt.Sprintf(`**Environmental Data:**
- AQI: %d (Risk Level: %s)
- Temperature: %.1f°C
- Humidity: %.0f%%
- Condition: %s

**Pollutant Breakdown:**
%s
**Task:**
Provide a detailed, scientifically-backed daily health plan in markdown.

**CRITICAL INSTRUCTION:**
Your advice MUST be directly derived from the AQI of %d (%s).
- IF AQI > 150: You MUST strictly forbid outdoor strenuous exercise and recommend N95 masks.
- IF AQI < 100: You MUST encourage ventilation and outdoor activities.
- Do NOT provide generic advice that applies to all conditions.

**Required Output Format:**

### Executive Summary
(One sentence summary)

### Key Risks
(Bullet points of main risks)

### Morning Plan
(5-6 detailed points: activity timing, protection, diet, non-obvious tips)

### Afternoon Plan
(5-6 detailed points: commute, hydration, indoor air quality, focus)

### Evening Plan
(5-6 detailed points: sleep hygiene, ventilation timing, recovery)`,
		env.AQI, riskLevel, env.Temperature, env.Humidity, env.Description,
		pollutants.String(), env.AQI, riskLevel)

	return s.assistant.Complete(ctx, prompt)
}

// BuildDailyPlan derives the structured plan from the AQI thresholds and,
// when the advice text carries the expected markdown sections, lifts the
// per-period plans out of it. Missing sections fall back to rule-based
// text so the plan is always complete.
func BuildDailyPlan(aqi int, advice string) types.DailyPlan {
	plan := types.DailyPlan{HydrationML: 2000}

	switch {
	case aqi > 300:
		plan.MaskLevel = "N95 (Mandatory)"
		plan.MaskPriority = "critical"
	case aqi > 200:
		plan.MaskLevel = "N95 (Highly Recommended)"
		plan.MaskPriority = "high"
	case aqi > 150:
		plan.MaskLevel = "N95 or KN95"
		plan.MaskPriority = "medium"
	case aqi > 100:
		plan.MaskLevel = "Surgical Mask"
		plan.MaskPriority = "low"
	default:
		plan.MaskLevel = "Optional"
		plan.MaskPriority = "none"
	}

	switch {
	case aqi > 300:
		plan.OutdoorRestriction = "Complete restriction - Stay indoors"
		plan.OutdoorAllowed = false
	case aqi > 200:
		plan.OutdoorRestriction = "Severe restriction - Only essential outdoor activities"
		plan.OutdoorAllowed = false
	case aqi > 150:
		plan.OutdoorRestriction = "Moderate restriction - Limit outdoor time to 30 minutes"
		plan.OutdoorAllowed = true
	case aqi > 100:
		plan.OutdoorRestriction = "Sensitive groups should limit outdoor time"
		plan.OutdoorAllowed = true
	default:
		plan.OutdoorRestriction = "Normal outdoor activities allowed"
		plan.OutdoorAllowed = true
	}

	switch {
	case aqi > 200:
		plan.HydrationML = 3000
	case aqi > 150:
		plan.HydrationML = 2500
	}

	plan.MorningPlan = extractSection(morningPlanRe, advice)
	plan.AfternoonPlan = extractSection(afternoonPlanRe, advice)
	plan.EveningPlan = extractSection(eveningPlanRe, advice)

	if plan.MorningPlan == "" {
		if aqi > 150 {
			plan.MorningPlan = "**Avoid outdoor exercise.**\nKeep windows closed.\nUse air purifier if available."
		} else {
			plan.MorningPlan = "**Good time for outdoor activities.**\nVentilate your home.\nEnjoy the fresh air."
		}
	}
	if plan.AfternoonPlan == "" {
		if aqi > 150 {
			plan.AfternoonPlan = "**Stay indoors as much as possible.**\nWear a mask if you must go out.\nDrink plenty of water."
		} else {
			plan.AfternoonPlan = "**Carry a mask just in case.**\nStay hydrated.\nMonitor AQI levels."
		}
	}
	if plan.EveningPlan == "" {
		if aqi > 150 {
			plan.EveningPlan = "**Avoid evening walks.**\nRun air purifier in bedroom.\nEnsure windows are sealed."
		} else {
			plan.EveningPlan = "**Safe for evening walk.**\nLight ventilation allowed.\nRelax and unwind."
		}
	}

	return plan
}

func extractSection(re *regexp.Regexp, advice string) string {
	match := re.FindStringSubmatch(advice)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// inferPollutionSources attributes elevated pollutants to their typical
// emitters. This is a heuristic over pollutant signatures, not a
// dispersion model.
func inferPollutionSources(env types.EnvironmentRecord) ([]string, string) {
	type attribution struct {
		source string
		weight float64
	}

	var candidates []attribution
	level := func(code string) float64 {
		if p, ok := env.Pollutants[code]; ok {
			return p.Concentration
		}
		return 0
	}

	if v := level("NO2"); v > 40 {
		candidates = append(candidates, attribution{"Vehicle Traffic", v / 40})
	}
	if v := level("CO"); v > 1000 {
		candidates = append(candidates, attribution{"Vehicle Traffic", v / 1000})
	}
	if v := level("SO2"); v > 20 {
		candidates = append(candidates, attribution{"Industrial Emissions", v / 20})
	}
	if v, pm25 := level("PM10"), level("PM2.5"); v > 50 && v > pm25*1.5 {
		candidates = append(candidates, attribution{"Construction Dust", v / 50})
	}
	if v := level("PM2.5"); v > 60 {
		candidates = append(candidates, attribution{"Crop/Biomass Burning", v / 60})
	}
	if v := level("O3"); v > 100 {
		candidates = append(candidates, attribution{"Photochemical Smog", v / 100})
	}

	if len(candidates) == 0 {
		return nil, ""
	}

	// Merge duplicate sources, keep the strongest signal first.
	merged := make(map[string]float64)
	for _, c := range candidates {
		if c.weight > merged[c.source] {
			merged[c.source] = c.weight
		}
	}
	sources := make([]string, 0, len(merged))
	for source := range merged {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool {
		if merged[sources[i]] != merged[sources[j]] {
			return merged[sources[i]] > merged[sources[j]]
		}
		return sources[i] < sources[j]
	})

	narrative := fmt.Sprintf("Current pollution in %s is primarily driven by %s.",
		env.City, strings.ToLower(strings.Join(sources, ", ")))
	return sources, narrative
}
