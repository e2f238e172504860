package ai

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.TokenEstimator = (*TiktokenEstimator)(nil)

// tokens of chat framing per message, per the OpenAI cookbook counting rules
const perMessageOverhead = 4

// TiktokenEstimator counts prompt tokens locally for providers that omit
// usage in their responses.
type TiktokenEstimator struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

func NewTiktokenEstimator() *TiktokenEstimator {
	return &TiktokenEstimator{encodings: map[string]*tiktoken.Tiktoken{}}
}

func (e *TiktokenEstimator) Estimate(model string, messages []adapter.Message) (int, error) {
	enc, err := e.encoding(model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + len(enc.Encode(m.Content, nil, nil))
	}
	return total, nil
}

func (e *TiktokenEstimator) encoding(model string) (*tiktoken.Tiktoken, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if enc, ok := e.encodings[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model names fall back to the common chat encoding.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tiktoken: %w", err)
		}
	}
	e.encodings[model] = enc
	return enc, nil
}
