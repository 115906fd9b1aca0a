package handlers

import (
	"context"
	"io"
	"net/http"

	apperrors "github.com/breathesafe/breathe-backend/errors"
	"github.com/breathesafe/breathe-backend/internal/dashboard"
	"github.com/breathesafe/breathe-backend/types"
	"github.com/gin-gonic/gin"
)

// maxImageBytes bounds uploaded sky photos (5 MiB).
const maxImageBytes = 5 << 20

// Assistant is the slice of the assistant service the handler needs.
type Assistant interface {
	Chat(ctx context.Context, query string, env types.EnvironmentRecord) (string, error)
	CommuteAdvice(ctx context.Context, env types.EnvironmentRecord, forecast []types.DaySample) (string, error)
	CompareHistory(ctx context.Context, env types.EnvironmentRecord, history []types.DaySample) (string, error)
	AnalyzeSkyImage(ctx context.Context, imageData []byte, mimeType string, env types.EnvironmentRecord) (string, error)
}

// AssistantHandler exposes the conversational tools. Every tool is gated
// on the session having a settled environment: with no located
// environment there is nothing to talk about, and the caller gets a
// conflict telling them to resolve a location first.
type AssistantHandler struct {
	assistant Assistant
	session   *dashboard.Session
}

func NewAssistantHandler(assistant Assistant, session *dashboard.Session) *AssistantHandler {
	return &AssistantHandler{assistant: assistant, session: session}
}

// Chat handles POST /api/ai/chat {"query": "..."}.
func (h *AssistantHandler) Chat(c *gin.Context) {
	env, err := h.session.CurrentEnvironment()
	if err != nil {
		_ = c.Error(err)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ValidationFailed("invalid chat request", err.Error()))
		return
	}

	answer, err := h.assistant.Chat(c.Request.Context(), req.Query, env)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// Commute handles POST /api/ai/commute.
func (h *AssistantHandler) Commute(c *gin.Context) {
	env, err := h.session.CurrentEnvironment()
	if err != nil {
		_ = c.Error(err)
		return
	}
	forecast, _, err := h.session.CurrentSeries()
	if err != nil {
		_ = c.Error(err)
		return
	}

	answer, err := h.assistant.CommuteAdvice(c.Request.Context(), env, forecast)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// History handles POST /api/ai/history.
func (h *AssistantHandler) History(c *gin.Context) {
	env, err := h.session.CurrentEnvironment()
	if err != nil {
		_ = c.Error(err)
		return
	}
	_, history, err := h.session.CurrentSeries()
	if err != nil {
		_ = c.Error(err)
		return
	}

	answer, err := h.assistant.CompareHistory(c.Request.Context(), env, history)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// Vision handles POST /api/ai/vision with a multipart "image" file.
func (h *AssistantHandler) Vision(c *gin.Context) {
	env, err := h.session.CurrentEnvironment()
	if err != nil {
		_ = c.Error(err)
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		_ = c.Error(apperrors.ValidationFailed("image file is required", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		_ = c.Error(apperrors.InternalServerError("failed to read image"))
		return
	}
	if len(data) > maxImageBytes {
		_ = c.Error(apperrors.ValidationFailed("image too large", "limit is 5 MiB"))
		return
	}

	answer, err := h.assistant.AnalyzeSkyImage(c.Request.Context(), data, header.Header.Get("Content-Type"), env)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": answer})
}
