package adapter

import "context"

// Message represents one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// SamplingParams are optional request knobs; nil means provider default.
type SamplingParams struct {
	Temperature *float64
	TopP        *float64
}

// Completion is the provider's answer. TokensUsed is the opaque total the
// provider reports; zero when the provider omits usage.
type Completion struct {
	Text       string
	TokensUsed int
}

// ModelClient is the language-model port.
type ModelClient interface {
	Complete(ctx context.Context, model string, messages []Message, params SamplingParams) (*Completion, error)
	ListModels(ctx context.Context) ([]string, error)
}

// TokenEstimator provides a best-effort prompt token count for providers that
// omit usage in their responses.
type TokenEstimator interface {
	Estimate(model string, messages []Message) (int, error)
}
