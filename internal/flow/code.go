package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// Code drives the admin promo-code wizard: code value, usage limit, tariff
// choice, confirmation, creation.
type Code struct {
	store  *session.Store
	codes  repository.CodeRepository
	tarifs repository.TarifRepository
	bot    adapter.Transport
	tr     *i18n.Bundle
	log    *zerolog.Logger
}

func NewCode(store *session.Store, codes repository.CodeRepository, tarifs repository.TarifRepository, bot adapter.Transport, tr *i18n.Bundle, logger *zerolog.Logger) *Code {
	l := logger.With().Str("flow", "code").Logger()
	return &Code{store: store, codes: codes, tarifs: tarifs, bot: bot, tr: tr, log: &l}
}

func (f *Code) Active(chatID int64) bool {
	_, ok := f.store.Code().Get(chatID)
	return ok
}

func (f *Code) Start(ctx context.Context, chatID int64, lang model.Language) error {
	d := f.store.Code().GetOrCreate(chatID, func() *session.CodeDraft {
		metrics.IncFlowStarted("code")
		return session.NewCodeDraft()
	})
	return f.render(ctx, chatID, lang, d, false)
}

func (f *Code) HandleText(ctx context.Context, chatID int64, lang model.Language, text string) error {
	d, ok := f.store.Code().Get(chatID)
	if !ok {
		return nil
	}

	switch d.State {
	case session.CodeAwaitingValue:
		f.store.Code().Update(chatID, func(d *session.CodeDraft) {
			d.Value = text
			d.State = session.CodeAwaitingLimit
		})
		return f.renderCurrent(ctx, chatID, lang)

	case session.CodeAwaitingLimit:
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n <= 0 {
			metrics.IncFlowRetry("code")
			return f.render(ctx, chatID, lang, d, true)
		}
		f.store.Code().Update(chatID, func(d *session.CodeDraft) {
			d.UsageLimit = n
			d.State = session.CodeAwaitingTarif
		})
		return f.renderCurrent(ctx, chatID, lang)

	default:
		// tariff choice and confirmation are button-only
		metrics.IncFlowRetry("code")
		return f.render(ctx, chatID, lang, d, true)
	}
}

func (f *Code) HandleButton(ctx context.Context, chatID int64, lang model.Language, data string) error {
	d, ok := f.store.Code().Get(chatID)
	if !ok {
		return nil
	}

	switch {
	case strings.HasPrefix(data, CBCodeTarifPrefix):
		if d.State != session.CodeAwaitingTarif {
			return f.render(ctx, chatID, lang, d, false)
		}
		name := ParseQueryName(data, CBCodeTarifPrefix)
		id := ParseQueryID(data)
		if id == 0 {
			return f.render(ctx, chatID, lang, d, true)
		}
		f.store.Code().Update(chatID, func(d *session.CodeDraft) {
			d.TarifName = name
			d.TarifID = id
			d.State = session.CodeAwaitingConfirm
		})
		return f.renderCurrent(ctx, chatID, lang)

	case data == CBCodeConfirm:
		if d.State != session.CodeAwaitingConfirm {
			return f.render(ctx, chatID, lang, d, false)
		}
		return f.finalize(ctx, chatID, lang, d)

	case data == CBCodeReset:
		f.store.Code().Delete(chatID)
		return f.Start(ctx, chatID, lang)
	}
	return nil
}

// finalize persists the code. The draft survives a persistence failure.
func (f *Code) finalize(ctx context.Context, chatID int64, lang model.Language, d *session.CodeDraft) error {
	code := &model.PromoCode{Value: d.Value, UsageLimit: d.UsageLimit, TarifID: d.TarifID}
	created, err := f.codes.Create(ctx, code)
	if err != nil {
		return fmt.Errorf("create code: %w", err)
	}
	f.store.Code().Delete(chatID)
	metrics.IncFlowCompleted("code")
	f.log.Info().Int64("code_id", created.ID).Int64("tarif_id", created.TarifID).Msg("promo code created")

	rows := [][]adapter.InlineButton{{{Text: f.tr.T(lang, "code.btn_add_new"), Data: CBCodeAddNew}}}
	return f.bot.SendPrompt(ctx, chatID, f.tr.T(lang, "code.done", created.Value), rows)
}

func (f *Code) renderCurrent(ctx context.Context, chatID int64, lang model.Language) error {
	d, ok := f.store.Code().Get(chatID)
	if !ok {
		return nil
	}
	return f.render(ctx, chatID, lang, d, false)
}

func (f *Code) render(ctx context.Context, chatID int64, lang model.Language, d *session.CodeDraft, wrong bool) error {
	prompt := func(text string) string {
		if wrong {
			return f.tr.T(lang, "error.invalid_params") + "\n" + text
		}
		return text
	}

	switch d.State {
	case session.CodeAwaitingValue:
		return f.bot.SendMessage(ctx, chatID, prompt(f.tr.T(lang, "code.value")))

	case session.CodeAwaitingLimit:
		return f.bot.SendMessage(ctx, chatID, prompt(f.tr.T(lang, "code.limit")))

	case session.CodeAwaitingTarif:
		tarifs, err := f.tarifs.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list tarifs: %w", err)
		}
		var rows [][]adapter.InlineButton
		for _, t := range tarifs {
			rows = append(rows, []adapter.InlineButton{{
				Text: t.Name,
				Data: fmt.Sprintf("%s%s_%d", CBCodeTarifPrefix, t.Name, t.ID),
			}})
		}
		return f.bot.SendPrompt(ctx, chatID, prompt(f.tr.T(lang, "code.tarif")), rows)

	case session.CodeAwaitingConfirm:
		text := f.tr.T(lang, "code.confirm", d.TarifName, d.TarifID, d.Value, d.UsageLimit)
		rows := [][]adapter.InlineButton{
			{{Text: f.tr.T(lang, "code.btn_confirm"), Data: CBCodeConfirm}},
			{{Text: f.tr.T(lang, "code.btn_reset"), Data: CBCodeReset}},
		}
		return f.bot.SendPrompt(ctx, chatID, prompt(text), rows)
	}
	return nil
}
