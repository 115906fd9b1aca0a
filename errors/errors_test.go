package errors

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ValidationError, "invalid input", "field required")
	assert.Equal(t, ValidationError, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Equal(t, "field required", err.Detail)
	assert.Equal(t, 400, err.HTTPStatus)
}

func TestWrap(t *testing.T) {
	originalErr := fmt.Errorf("original error")
	wrappedErr := Wrap(originalErr, UpstreamError, "weather fetch failed")

	assert.Equal(t, UpstreamError, wrappedErr.Type)
	assert.Equal(t, "weather fetch failed", wrappedErr.Message)
	assert.Equal(t, originalErr.Error(), wrappedErr.Detail)
	assert.Equal(t, 502, wrappedErr.HTTPStatus)
	assert.Equal(t, originalErr, wrappedErr.Raw)
}

func TestUpstreamFailed(t *testing.T) {
	err := UpstreamFailed("geocoding", 503, []byte("service unavailable"))
	assert.Equal(t, UpstreamError, err.Type)
	assert.Equal(t, "geocoding request failed", err.Message)
	assert.Contains(t, err.Detail, "status 503")
	assert.Contains(t, err.Detail, "service unavailable")
	assert.Equal(t, 502, err.HTTPStatus)
}

func TestUpstreamFailedTruncatesBody(t *testing.T) {
	body := []byte(strings.Repeat("x", 500))
	err := UpstreamFailed("environment", 500, body)
	// "status 500: " prefix plus at most 100 chars of body
	assert.LessOrEqual(t, len(err.Detail), len("status 500: ")+100)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short body", Snippet([]byte("short body")))
	assert.Len(t, Snippet([]byte(strings.Repeat("a", 250))), 100)
	assert.Equal(t, "a b", Snippet([]byte("a\nb")))
}

func TestSnippetKeepsValidUTF8(t *testing.T) {
	// 99 ASCII bytes followed by a three-byte rune puts the byte limit in
	// the middle of the rune.
	body := strings.Repeat("a", 99) + strings.Repeat("気", 20)
	got := Snippet([]byte(body))

	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), 100)
	assert.Equal(t, strings.Repeat("a", 99), got)
}

func TestDecodeFailedIsDistinctFromUpstream(t *testing.T) {
	cause := fmt.Errorf("invalid character '<'")
	err := DecodeFailed("environment", cause, []byte("<html>not json</html>"))
	assert.Equal(t, DecodeError, err.Type)
	assert.NotEqual(t, UpstreamError, err.Type)
	assert.Contains(t, err.Detail, "not json")
	assert.Equal(t, cause, err.Raw)
}

func TestNotFound(t *testing.T) {
	err := NotFound("Location", "Atlantis")
	assert.Equal(t, NotFoundError, err.Type)
	assert.Equal(t, "Location not found", err.Message)
	assert.Equal(t, 404, err.HTTPStatus)
}

func TestNoLocationData(t *testing.T) {
	err := NoLocationData()
	assert.Equal(t, NoLocationError, err.Type)
	assert.Equal(t, "No location data", err.Message)
	assert.Equal(t, 409, err.HTTPStatus)
}

func TestDomainf(t *testing.T) {
	err := Domainf("advisory generation failed for %s", "Delhi")
	assert.Equal(t, DomainError, err.Type)
	assert.Equal(t, "advisory generation failed for Delhi", err.Message)
	assert.Equal(t, 422, err.HTTPStatus)
}

func TestGetHTTPStatusFallback(t *testing.T) {
	err := &AppError{Type: ServerError, Message: "boom"}
	assert.Equal(t, 500, err.GetHTTPStatus())
}
