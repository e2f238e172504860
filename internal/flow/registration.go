package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// Registration drives the five-step onboarding wizard: language, display
// name, promo code, confirmation, account materialization.
type Registration struct {
	store    *session.Store
	accounts repository.AccountRepository
	codes    repository.CodeRepository
	bot      adapter.Transport
	tr       *i18n.Bundle
	log      *zerolog.Logger
}

func NewRegistration(store *session.Store, accounts repository.AccountRepository, codes repository.CodeRepository, bot adapter.Transport, tr *i18n.Bundle, logger *zerolog.Logger) *Registration {
	l := logger.With().Str("flow", "registration").Logger()
	return &Registration{store: store, accounts: accounts, codes: codes, bot: bot, tr: tr, log: &l}
}

// Active reports whether the chat has an in-progress registration draft.
func (f *Registration) Active(chatID int64) bool {
	_, ok := f.store.Registration().Get(chatID)
	return ok
}

// Start creates the draft when missing and renders the current state's
// prompt. senderName pre-fills the display name offered at the name step.
func (f *Registration) Start(ctx context.Context, chatID int64, senderName string) error {
	d := f.store.Registration().GetOrCreate(chatID, func() *session.RegistrationDraft {
		metrics.IncFlowStarted("registration")
		return session.NewRegistrationDraft(senderName)
	})
	return f.render(ctx, chatID, d, "")
}

// HandleText applies a free-text answer to the draft's current state.
// Button-only states re-render with an error banner and do not advance.
func (f *Registration) HandleText(ctx context.Context, chatID int64, text string) error {
	d, ok := f.store.Registration().Get(chatID)
	if !ok {
		return nil
	}

	switch d.State {
	case session.RegAwaitingLanguage:
		return f.render(ctx, chatID, d, "reg.language_retry")

	case session.RegAwaitingName:
		f.store.Registration().Update(chatID, func(d *session.RegistrationDraft) {
			d.Name = text
			d.State = session.RegAwaitingPromo
		})
		return f.renderCurrent(ctx, chatID)

	case session.RegAwaitingPromo:
		valid, err := f.codes.Validate(ctx, text)
		if err != nil {
			return fmt.Errorf("validate code: %w", err)
		}
		if !valid {
			metrics.IncFlowRetry("registration")
			if err := f.bot.SendMessage(ctx, chatID, f.tr.T(d.Language, "reg.promo_invalid")); err != nil {
				return err
			}
			return f.render(ctx, chatID, d, "")
		}
		f.store.Registration().Update(chatID, func(d *session.RegistrationDraft) {
			d.Code = text
			d.State = session.RegAwaitingConfirm
		})
		return f.renderCurrent(ctx, chatID)

	case session.RegAwaitingConfirm:
		return f.render(ctx, chatID, d, "reg.confirm_retry")
	}
	return nil
}

// HandleButton applies a pressed button. Buttons are only honored in the
// state that rendered them; stale presses re-render the current prompt.
func (f *Registration) HandleButton(ctx context.Context, chatID int64, data, senderName string) error {
	d, ok := f.store.Registration().Get(chatID)
	if !ok {
		return nil
	}

	switch {
	case strings.HasPrefix(data, CBRegLangPrefix):
		if d.State != session.RegAwaitingLanguage {
			return f.render(ctx, chatID, d, "")
		}
		lang := model.Language(strings.TrimPrefix(data, CBRegLangPrefix))
		f.store.Registration().Update(chatID, func(d *session.RegistrationDraft) {
			d.Language = lang
			d.State = session.RegAwaitingName
		})
		return f.renderCurrent(ctx, chatID)

	case data == CBRegSkipName:
		if d.State != session.RegAwaitingName {
			return f.render(ctx, chatID, d, "")
		}
		f.store.Registration().Update(chatID, func(d *session.RegistrationDraft) {
			if senderName != "" {
				d.Name = senderName
			}
			d.State = session.RegAwaitingPromo
		})
		return f.renderCurrent(ctx, chatID)

	case data == CBRegWelcome:
		if d.State != session.RegAwaitingPromo {
			return f.render(ctx, chatID, d, "")
		}
		f.store.Registration().Update(chatID, func(d *session.RegistrationDraft) {
			d.Code = model.WelcomeCode
			d.State = session.RegAwaitingConfirm
		})
		return f.renderCurrent(ctx, chatID)

	case data == CBRegConfirm:
		if d.State != session.RegAwaitingConfirm {
			return f.render(ctx, chatID, d, "")
		}
		return f.finalize(ctx, chatID, d)

	case data == CBRegReset:
		f.store.Registration().Delete(chatID)
		return f.Start(ctx, chatID, senderName)
	}
	return nil
}

// finalize materializes the account from the draft. The draft survives a
// persistence failure so the user can retry the confirmation.
func (f *Registration) finalize(ctx context.Context, chatID int64, d *session.RegistrationDraft) error {
	info := model.RegistrationInfo{Name: d.Name, Code: d.Code, Language: d.Language}
	if _, err := f.accounts.Create(ctx, chatID, info); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	lang := d.Language
	f.store.Registration().Delete(chatID)
	f.store.Account().Delete(chatID)
	metrics.IncFlowCompleted("registration")
	metrics.IncUsersRegistered()
	f.log.Info().Int64("chat_id", chatID).Msg("account registered")

	rows := [][]adapter.InlineButton{{{Text: f.tr.T(lang, "reg.btn_start"), Data: CBRegStart}}}
	return f.bot.SendPrompt(ctx, chatID, f.tr.T(lang, "reg.done"), rows)
}

func (f *Registration) renderCurrent(ctx context.Context, chatID int64) error {
	d, ok := f.store.Registration().Get(chatID)
	if !ok {
		return nil
	}
	return f.render(ctx, chatID, d, "")
}

// render sends the prompt for the draft's current state. bannerKey, when
// set, replaces the prompt text with an error banner for the same state.
func (f *Registration) render(ctx context.Context, chatID int64, d *session.RegistrationDraft, bannerKey string) error {
	lang := d.Language
	switch d.State {
	case session.RegAwaitingLanguage:
		text := f.tr.T(lang, "reg.language")
		if bannerKey != "" {
			text = f.tr.T(lang, bannerKey)
		}
		rows := [][]adapter.InlineButton{
			{{Text: "Русский", Data: CBRegLangPrefix + string(model.LanguageRU)}},
			{{Text: "English", Data: CBRegLangPrefix + string(model.LanguageEN)}},
		}
		return f.bot.SendPrompt(ctx, chatID, text, rows)

	case session.RegAwaitingName:
		rows := [][]adapter.InlineButton{{{Text: f.tr.T(lang, "reg.btn_skip_name"), Data: CBRegSkipName}}}
		return f.bot.SendPrompt(ctx, chatID, f.tr.T(lang, "reg.name", d.Name), rows)

	case session.RegAwaitingPromo:
		rows := [][]adapter.InlineButton{{{Text: f.tr.T(lang, "reg.btn_free"), Data: CBRegWelcome}}}
		return f.bot.SendPrompt(ctx, chatID, f.tr.T(lang, "reg.promo", d.Name), rows)

	case session.RegAwaitingConfirm:
		codeLine := f.tr.T(lang, "reg.code_promo", d.Code)
		if d.Code == model.WelcomeCode {
			codeLine = f.tr.T(lang, "reg.code_free")
		}
		text := f.tr.T(lang, "reg.confirm", d.Name, string(d.Language), codeLine)
		if bannerKey != "" {
			text = f.tr.T(lang, bannerKey)
		}
		rows := [][]adapter.InlineButton{
			{{Text: f.tr.T(lang, "reg.btn_confirm"), Data: CBRegConfirm}},
			{{Text: f.tr.T(lang, "reg.btn_reset"), Data: CBRegReset}},
		}
		return f.bot.SendPrompt(ctx, chatID, text, rows)
	}
	return nil
}
