package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/breathesafe/breathe-backend/logger"
	"github.com/breathesafe/breathe-backend/pkg/ai"
	"github.com/breathesafe/breathe-backend/types"
)

// cityDirectory holds curated emergency numbers for cities we know well.
var cityDirectory = map[string]types.SupportRecord{
	"Sydney":        {Ambulance: "000", Police: "000", General: "000", Notes: "Dial 000 for all emergencies in Australia."},
	"Melbourne":     {Ambulance: "000", Police: "000", General: "000", Notes: "Dial 000 for all emergencies in Australia."},
	"Mumbai":        {Ambulance: "108", Police: "100", General: "112", Notes: "108 is for Ambulance, 100 for Police. 112 is National Emergency."},
	"Delhi":         {Ambulance: "102", Police: "100", General: "112", Notes: "102 for Ambulance, 100 for Police."},
	"Bangalore":     {Ambulance: "108", Police: "100", General: "112", Notes: "108 for Ambulance."},
	"London":        {Ambulance: "999", Police: "999", General: "999", Notes: "Dial 999 for emergencies. 111 for non-emergency medical advice."},
	"New York":      {Ambulance: "911", Police: "911", General: "911", Notes: "Dial 911 for all emergencies."},
	"San Francisco": {Ambulance: "911", Police: "911", General: "911", Notes: "Dial 911 for all emergencies."},
	"Singapore":     {Ambulance: "995", Police: "999", General: "995", Notes: "995 for Ambulance/Fire, 999 for Police."},
	"Dubai":         {Ambulance: "998", Police: "999", General: "999", Notes: "998 for Ambulance, 999 for Police."},
}

// countryDirectory holds national defaults keyed by ISO 3166-1 alpha-2 code.
var countryDirectory = map[string]types.SupportRecord{
	"IN": {Ambulance: "112", Police: "100", General: "112", Notes: "Dial 112 for National Emergency."},
	"US": {Ambulance: "911", Police: "911", General: "911", Notes: "Dial 911 for all emergencies."},
	"GB": {Ambulance: "999", Police: "999", General: "999", Notes: "Dial 999 for emergencies."},
	"AU": {Ambulance: "000", Police: "000", General: "000", Notes: "Dial 000 for all emergencies."},
	"SG": {Ambulance: "995", Police: "999", General: "995", Notes: "995 for Ambulance."},
	"AE": {Ambulance: "998", Police: "999", General: "999", Notes: "998 for Ambulance."},
}

// fallbackSupport is the answer of last resort. 112 is the GSM
// international emergency number and works in most countries.
var fallbackSupport = types.SupportRecord{
	Ambulance: "112",
	Police:    "112",
	General:   "112",
	Notes:     "Could not fetch local numbers. Dial 112 for international emergency.",
}

// SupportService resolves emergency contact numbers for a location,
// consulting the curated directory first and the assistant model for
// locations it does not cover.
type SupportService struct {
	assistant ai.ClientInterface
}

func NewSupportService(assistant ai.ClientInterface) *SupportService {
	return &SupportService{assistant: assistant}
}

// GetEmergencyInfo never returns an error: a location we cannot resolve
// gets the international fallback record.
func (s *SupportService) GetEmergencyInfo(ctx context.Context, city, countryCode string) types.SupportRecord {
	log := logger.GetLogger()

	if record, ok := cityDirectory[city]; ok {
		return record
	}
	if record, ok := countryDirectory[countryCode]; ok {
		return record
	}

	record, err := s.lookupViaAssistant(ctx, city, countryCode)
	if err != nil {
		log.Warnw("Emergency number lookup failed", "city", city, "country", countryCode, "error", err)
		return fallbackSupport
	}
	return record
}

func (s *SupportService) lookupViaAssistant(ctx context.Context, city, country string) (types.SupportRecord, error) {
	if s.assistant == nil {
		return types.SupportRecord{}, fmt.Errorf("assistant not configured")
	}

	prompt := fmt.Sprintf(`Provide the emergency contact numbers for %s, %s.

Required output format (JSON):
{
    "ambulance": "Phone Number",
    "police": "Phone Number",
    "general": "Phone Number (e.g. 911, 112)",
    "notes": "Brief 1-sentence advice specific to this location."
}

Constraints:
- Return ONLY valid JSON.
- If specific city numbers aren't found, use national numbers for %s.`, city, country, country)

	answer, err := s.assistant.Complete(ctx, prompt)
	if err != nil {
		return types.SupportRecord{}, err
	}

	var record types.SupportRecord
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &record); err != nil {
		return types.SupportRecord{}, fmt.Errorf("parse emergency numbers: %w", err)
	}
	if record.General == "" && record.Ambulance == "" {
		return types.SupportRecord{}, fmt.Errorf("assistant returned no numbers")
	}
	return record, nil
}

// stripCodeFence unwraps a ```json ... ``` (or bare ```) block the model
// may wrap its answer in.
func stripCodeFence(answer string) string {
	if idx := strings.Index(answer, "```json"); idx >= 0 {
		answer = answer[idx+len("```json"):]
		if end := strings.Index(answer, "```"); end >= 0 {
			answer = answer[:end]
		}
	} else if idx := strings.Index(answer, "```"); idx >= 0 {
		answer = answer[idx+3:]
		if end := strings.Index(answer, "```"); end >= 0 {
			answer = answer[:end]
		}
	}
	return strings.TrimSpace(answer)
}
