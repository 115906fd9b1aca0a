package types

// DailyPlan carries actionable recommendations derived from the current
// environment: mask level, hydration target and three time-of-day plans
// in markdown.
type DailyPlan struct {
	MaskLevel          string `json:"mask_level"`
	MaskPriority       string `json:"mask_priority"`
	HydrationML        int    `json:"hydration_ml"`
	OutdoorRestriction string `json:"outdoor_restriction"`
	OutdoorAllowed     bool   `json:"outdoor_allowed"`
	MorningPlan        string `json:"morning_plan"`
	AfternoonPlan      string `json:"afternoon_plan"`
	EveningPlan        string `json:"evening_plan"`
}

// AdvisoryRecord is the AI-generated health guidance for an environment
// record. HealthAdvice is markdown; rendering is the consumer's concern.
type AdvisoryRecord struct {
	HealthAdvice    string     `json:"health_advice"`
	Sources         []string   `json:"sources,omitempty"`
	SourceNarrative string     `json:"source_narrative,omitempty"`
	DailyPlan       *DailyPlan `json:"daily_plan,omitempty"`
}
