package ai

import (
	"context"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*NoopClient)(nil)

// NoopClient echoes the question back. Used for local runs without API keys.
type NoopClient struct{}

func NewNoopClient() *NoopClient { return &NoopClient{} }

func (NoopClient) Complete(ctx context.Context, model string, messages []adapter.Message, params adapter.SamplingParams) (*adapter.Completion, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return &adapter.Completion{Text: "echo: " + last, TokensUsed: 0}, nil
}

func (NoopClient) ListModels(ctx context.Context) ([]string, error) {
	return []string{"noop"}, nil
}
