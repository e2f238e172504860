package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"telegram-gpt-bot/internal/domain/ports/adapter"
)

var _ adapter.ModelClient = (*GeminiAdapter)(nil)

type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
}

func NewGeminiAdapter(ctx context.Context, apiKey, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel}, nil
}

func (g *GeminiAdapter) Complete(ctx context.Context, model string, messages []adapter.Message, params adapter.SamplingParams) (*adapter.Completion, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini: no messages")
	}
	if model == "" {
		model = g.defaultModel
	}

	cfg := &genai.GenerateContentConfig{}
	if params.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*params.TopP))
	}

	// System turns go through the dedicated instruction slot; Gemini has no
	// system role in chat history.
	history, system := splitSystem(messages)
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(history) == 0 {
		return nil, errors.New("gemini: no chat turns")
	}

	last := history[len(history)-1]
	if last.Role != genai.RoleUser {
		return nil, errors.New("gemini: last message must be from user")
	}

	chat, err := g.client.Chats.Create(ctx, model, cfg, history[:len(history)-1])
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	resp, err := chat.SendMessage(ctx, *last.Parts[0])
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	text := ""
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return &adapter.Completion{Text: text, TokensUsed: tokens}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	var out []string
	for m := range g.client.Models.All(ctx) {
		if m.Name != "" {
			out = append(out, m.Name)
		}
	}
	if len(out) == 0 && g.defaultModel != "" {
		out = []string{g.defaultModel}
	}
	return out, nil
}

func splitSystem(messages []adapter.Message) ([]*genai.Content, string) {
	var system []string
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
			continue
		case "assistant":
			out = append(out, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			out = append(out, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return out, strings.Join(system, "\n")
}
