package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/pkg/ai"
	"github.com/breathesafe/breathe-backend/types"
)

// AssistantService exposes the conversational tools: context-aware chat,
// commute planning, historical comparison, and sky photo analysis. Each
// tool injects the current environment into the prompt so the model
// answers about the user's actual air, not air in general.
type AssistantService struct {
	client ai.ClientInterface
}

func NewAssistantService(client ai.ClientInterface) *AssistantService {
	return &AssistantService{client: client}
}

// Chat answers a free-form question with the live environment as context.
func (s *AssistantService) Chat(ctx context.Context, query string, env types.EnvironmentRecord) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.ValidationFailed("query is required", "")
	}

	prompt := fmt.Sprintf(`System: You are 'BreatheAI Assistant', a helpful Air Quality expert.
Context: User is in %s where AQI is %d (%s).
Temperature: %.1fC.

User Query: "%s"

Answer elegantly and concisely. If they ask about running/activity, use the AQI to decide.`,
		env.City, env.AQI, riskLabelForAQI(env.AQI), env.Temperature, query)

	return s.client.Complete(ctx, prompt)
}

// CommuteAdvice suggests when and how to commute given the AQI forecast.
func (s *AssistantService) CommuteAdvice(ctx context.Context, env types.EnvironmentRecord, forecast []types.DaySample) (string, error) {
	forecastStr := "No forecast available."
	if len(forecast) > 0 {
		var b strings.Builder
		for i, sample := range forecast {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&b, "%s (%s): max AQI %d; ", sample.Day, sample.Date, sample.MaxAQI)
		}
		forecastStr = strings.TrimSuffix(b.String(), "; ")
	}

	prompt := fmt.Sprintf(`Task: Analyze the commute conditions for the next 24 hours.
Current AQI: %d.
Forecast Snippet: %s

Output a "Commute Recommendation":
1. Best time to leave (if variance exists).
2. Mode of transport tip (Windows up/down, Mask etc).

Keep it short (2 sentences).`, env.AQI, forecastStr)

	return s.client.Complete(ctx, prompt)
}

// CompareHistory tells the user whether today is better or worse than the
// past week at this location.
func (s *AssistantService) CompareHistory(ctx context.Context, env types.EnvironmentRecord, history []types.DaySample) (string, error) {
	historyStr := "No history data."
	if len(history) > 0 {
		var b strings.Builder
		for _, sample := range history {
			fmt.Fprintf(&b, "%s (%s): max AQI %d; ", sample.Day, sample.Date, sample.MaxAQI)
		}
		historyStr = strings.TrimSuffix(b.String(), "; ")
	}

	prompt := fmt.Sprintf(`Task: "Time Machine" comparison.
Current AQI: %d.
Historical Data (Past few days): %s

Tell the user if today is better or worse than usual for this location.
Be interesting.`, env.AQI, historyStr)

	return s.client.Complete(ctx, prompt)
}

// AnalyzeSkyImage estimates visibility and haze from a user photo,
// cross-checked against the sensor AQI.
func (s *AssistantService) AnalyzeSkyImage(ctx context.Context, imageData []byte, mimeType string, env types.EnvironmentRecord) (string, error) {
	if len(imageData) == 0 {
		return "", errors.ValidationFailed("image is required", "")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	prompt := fmt.Sprintf(`You are an air quality expert. Analyze this image of the sky/street.
Current Sensor Data for context:
AQI: %d
City: %s

Task:
1. Estimate visibility (in km).
2. Describe the haze/smog intensity (None, Mild, Heavy, Severe).
3. Compare visual cues with the sensor AQI (Does it look better/worse?).

Keep it brief (3-4 sentences).`, env.AQI, env.City)

	return s.client.CompleteWithImage(ctx, prompt, imageData, mimeType)
}

func riskLabelForAQI(aqi int) string {
	switch {
	case aqi > 300:
		return "Hazardous"
	case aqi > 200:
		return "Very Unhealthy"
	case aqi > 150:
		return "Unhealthy"
	case aqi > 100:
		return "Moderate"
	default:
		return "Good"
	}
}
