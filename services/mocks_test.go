package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// mockAssistantClient is a hand-written mock of ai.ClientInterface.
type mockAssistantClient struct {
	mock.Mock
}

func (m *mockAssistantClient) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockAssistantClient) CompleteWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	args := m.Called(ctx, prompt, image, mimeType)
	return args.String(0), args.Error(1)
}
