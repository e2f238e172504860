package ai

import (
	"context"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*limitedClient)(nil)

// limitedClient caps in-flight provider calls with a semaphore.
type limitedClient struct {
	inner adapter.ModelClient
	sem   chan struct{}
}

func NewLimitedClient(inner adapter.ModelClient, maxConcurrent int) adapter.ModelClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedClient{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedClient) Complete(ctx context.Context, model string, messages []adapter.Message, params adapter.SamplingParams) (*adapter.Completion, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, model, messages, params)
}

func (l *limitedClient) ListModels(ctx context.Context) ([]string, error) {
	return l.inner.ListModels(ctx)
}
