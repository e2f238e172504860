package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

// ChatUseCase answers user questions through the model provider, maintaining
// the account's bounded conversation window and metered usage.
type ChatUseCase interface {
	// Ask sends the question with the account's context window and service
	// preamble, persists both turns and charges the reported token usage.
	Ask(ctx context.Context, acc *model.Account, question string) (string, error)

	// ClearContext drops the account's stored history.
	ClearContext(ctx context.Context, acc *model.Account) error
}

type chatUC struct {
	messages  repository.MessageRepository
	accounts  repository.AccountRepository
	store     *session.Store
	ai        adapter.ModelClient
	estimator adapter.TokenEstimator
	quota     QuotaUseCase
	modelName string
	now       func() time.Time
	log       *zerolog.Logger
}

func NewChatUseCase(messages repository.MessageRepository, accounts repository.AccountRepository, store *session.Store, ai adapter.ModelClient, estimator adapter.TokenEstimator, quota QuotaUseCase, modelName string, logger *zerolog.Logger) *chatUC {
	l := logger.With().Str("component", "chat-usecase").Logger()
	return &chatUC{
		messages:  messages,
		accounts:  accounts,
		store:     store,
		ai:        ai,
		estimator: estimator,
		quota:     quota,
		modelName: modelName,
		now:       time.Now,
		log:       &l,
	}
}

func (u *chatUC) Ask(ctx context.Context, acc *model.Account, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyMessage
	}

	access, err := u.quota.ValidateAccess(ctx, acc)
	if err != nil {
		return "", err
	}
	if !access.Allowed {
		return "", u.denial(access)
	}

	prompt, err := u.buildPrompt(ctx, acc, question)
	if err != nil {
		return "", err
	}
	params := samplingParams(acc.Settings)

	requestID := ulid.Make().String()
	start := u.now()
	completion, err := u.ai.Complete(ctx, u.modelName, prompt, params)
	latency := int(u.now().Sub(start).Milliseconds())
	if err != nil {
		metrics.ObserveChatUsage("ai", u.modelName, 0, latency, false)
		u.log.Error().Err(err).Str("request_id", requestID).Msg("model call failed")
		return "", fmt.Errorf("model call: %w", err)
	}
	metrics.ObserveChatUsage("ai", u.modelName, completion.TokensUsed, latency, true)
	u.log.Info().
		Str("request_id", requestID).
		Int64("account_id", acc.ID).
		Int("tokens", completion.TokensUsed).
		Int("latency_ms", latency).
		Msg("model call completed")

	if acc.Context.Enabled {
		max := u.maxContext(acc)
		if err := u.appendBounded(ctx, acc.Context.ID, model.RoleUser, question, max); err != nil {
			return "", err
		}
		if err := u.appendBounded(ctx, acc.Context.ID, model.RoleAssistant, completion.Text, max); err != nil {
			return "", err
		}
	}

	tokens := completion.TokensUsed
	if tokens == 0 {
		full := append(prompt, adapter.Message{Role: string(model.RoleAssistant), Content: completion.Text})
		if est, err := u.estimator.Estimate(u.modelName, full); err == nil {
			tokens = est
		} else {
			u.log.Warn().Err(err).Str("request_id", requestID).Msg("token estimate failed")
		}
	}
	if tokens > 0 && !acc.IsAdmin {
		if err := u.accounts.UpdateUsage(ctx, acc.ID, tokens); err != nil {
			return "", fmt.Errorf("update usage: %w", err)
		}
		u.store.Account().Delete(acc.ChatID)
	}
	return completion.Text, nil
}

func (u *chatUC) ClearContext(ctx context.Context, acc *model.Account) error {
	if err := u.messages.ClearByChat(ctx, acc.ChatID); err != nil {
		return fmt.Errorf("clear context: %w", err)
	}
	return nil
}

// buildPrompt assembles service preamble, stored history and the question.
func (u *chatUC) buildPrompt(ctx context.Context, acc *model.Account, question string) ([]adapter.Message, error) {
	var prompt []adapter.Message
	if acc.Context.UseServiceInfo && acc.Context.ServiceInfo != "" {
		prompt = append(prompt, adapter.Message{Role: string(model.RoleSystem), Content: acc.Context.ServiceInfo})
	}
	if acc.Context.Enabled {
		history, err := u.messages.ListByContext(ctx, acc.Context.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("list context: %w", err)
		}
		for _, m := range history {
			prompt = append(prompt, adapter.Message{Role: string(m.Role), Content: m.Content})
		}
	}
	return append(prompt, adapter.Message{Role: string(model.RoleUser), Content: question}), nil
}

// appendBounded inserts one turn, pruning oldest messages first so the stored
// window never exceeds max. Each turn is bounded independently.
func (u *chatUC) appendBounded(ctx context.Context, contextID int64, role model.Role, content string, max int) error {
	count, err := u.messages.CountByContext(ctx, contextID)
	if err != nil {
		return fmt.Errorf("count context: %w", err)
	}
	for ; count >= max && count > 0; count-- {
		if err := u.messages.PruneOldest(ctx, contextID); err != nil {
			return fmt.Errorf("prune context: %w", err)
		}
	}
	if _, err := u.messages.Create(ctx, contextID, role, content); err != nil {
		return fmt.Errorf("store turn: %w", err)
	}
	return nil
}

func (u *chatUC) denial(a Access) error {
	switch {
	case !a.TarifValid:
		metrics.IncQuotaDenied("expired")
		return domain.ErrTarifExpired
	case !a.DailyOk:
		metrics.IncQuotaDenied("daily")
		return domain.ErrDailyLimitReached
	default:
		metrics.IncQuotaDenied("total")
		return domain.ErrTotalLimitReached
	}
}

func (u *chatUC) maxContext(acc *model.Account) int {
	if length := acc.Context.Length; length > 0 {
		return length
	}
	if acc.Activity.Tarif != nil {
		return acc.Activity.Tarif.MaxContext
	}
	return 1
}

// samplingParams maps the account's sampling preference onto request knobs.
// Only the chosen knobs are sent; the provider defaults the rest.
func samplingParams(s model.Settings) adapter.SamplingParams {
	var p adapter.SamplingParams
	switch s.RandomModel {
	case model.RandomModelTemperature:
		t := s.Temperature
		p.Temperature = &t
	case model.RandomModelTopP:
		tp := s.TopP
		p.TopP = &tp
	case model.RandomModelBoth:
		t, tp := s.Temperature, s.TopP
		p.Temperature = &t
		p.TopP = &tp
	}
	return p
}
