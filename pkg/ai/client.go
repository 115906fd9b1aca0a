// Package ai is a thin client for an OpenAI-compatible chat completion
// endpoint. The advisory, support-fallback and assistant tools all ride on
// this client.
package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/logger"
)

const defaultModel = "gpt-4o-mini"

// ClientInterface defines the operations the AI upstream exposes.
type ClientInterface interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ ClientInterface = (*Client)(nil)

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(apiKey, baseURL, model string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Complete sends a single-prompt completion request and returns the text
// of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, []message{{Role: "user", Content: prompt}})
}

// CompleteWithImage sends a prompt plus an inline image for vision-capable
// models. The image is never stored; it travels straight to the upstream.
func (c *Client) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	return c.complete(ctx, []message{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
		},
	}})
}

func (c *Client) complete(ctx context.Context, messages []message) (string, error) {
	log := logger.GetLogger()

	if c.apiKey == "" {
		return "", errors.Domainf("advisory AI is not configured")
	}

	payload, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.4,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.UpstreamError, "advisory AI request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.UpstreamError, "advisory AI response read failed")
	}

	if resp.StatusCode != http.StatusOK {
		log.Warnw("AI upstream returned non-OK status",
			"status", resp.StatusCode,
			"body", errors.Snippet(body))
		return "", errors.UpstreamFailed("advisory AI", resp.StatusCode, body)
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", errors.DecodeFailed("advisory AI", err, body)
	}

	if out.Error != nil {
		return "", errors.Domainf("advisory AI error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.Domainf("advisory AI returned an empty completion")
	}

	return out.Choices[0].Message.Content, nil
}
