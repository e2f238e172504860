package ai

import (
	"context"
	"errors"
	"strings"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*MultiAdapter)(nil)

// MultiAdapter routes each request to the provider owning the model name,
// falling back to the default provider for unknown models.
type MultiAdapter struct {
	defaultProvider string
	byProvider      map[string]adapter.ModelClient
}

func NewMultiAdapter(defaultProvider string, byProvider map[string]adapter.ModelClient) *MultiAdapter {
	return &MultiAdapter{
		defaultProvider: strings.ToLower(defaultProvider),
		byProvider:      byProvider,
	}
}

// ResolveProvider maps a model name to its provider key.
func ResolveProvider(model, fallback string) string {
	l := strings.ToLower(model)
	switch {
	case strings.HasPrefix(l, "gemini"):
		return "gemini"
	case strings.HasPrefix(l, "gpt"), strings.HasPrefix(l, "o1"), strings.HasPrefix(l, "o3"):
		return "openai"
	default:
		return fallback
	}
}

func (m *MultiAdapter) pick(model string) adapter.ModelClient {
	if a := m.byProvider[ResolveProvider(model, m.defaultProvider)]; a != nil {
		return a
	}
	for _, a := range m.byProvider {
		if a != nil {
			return a
		}
	}
	return nil
}

func (m *MultiAdapter) Complete(ctx context.Context, model string, messages []adapter.Message, params adapter.SamplingParams) (*adapter.Completion, error) {
	a := m.pick(model)
	if a == nil {
		return nil, errors.New("ai: no provider configured")
	}
	return a.Complete(ctx, model, messages, params)
}

func (m *MultiAdapter) ListModels(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, a := range m.byProvider {
		list, _ := a.ListModels(ctx)
		for _, name := range list {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	return out, nil
}
