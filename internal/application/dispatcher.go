package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/flow"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
	"telegram-gpt-bot/internal/usecase"
)

// Update is one transport-agnostic incoming event. Exactly one of Text,
// Command or CallbackData is meaningful.
type Update struct {
	ChatID       int64
	SenderName   string
	Text         string
	Command      string
	CallbackData string
	MessageID    int
}

// RateLimiter throttles per-chat traffic before any handler runs.
type RateLimiter interface {
	Allow(ctx context.Context, chatID int64) (bool, error)
}

// commands every chat may use before registering
var unauthCommands = map[string]bool{
	"start": true,
	"help":  true,
	"info":  true,
	"about": true,
}

// Dispatcher classifies updates and routes them to the owning flow or the
// chat usecase. Processing for one chat is serialized through the session
// store's per-chat lock, so a flow never sees interleaved inputs.
type Dispatcher struct {
	store    *session.Store
	accounts repository.AccountRepository
	tarifs   repository.TarifRepository

	reg      *flow.Registration
	tarif    *flow.Tarif
	code     *flow.Code
	settings *flow.Settings

	chat    usecase.ChatUseCase
	limiter RateLimiter
	bot     adapter.Transport
	tr      *i18n.Bundle
	log     *zerolog.Logger
}

func NewDispatcher(
	store *session.Store,
	accounts repository.AccountRepository,
	tarifs repository.TarifRepository,
	reg *flow.Registration,
	tarif *flow.Tarif,
	code *flow.Code,
	settings *flow.Settings,
	chat usecase.ChatUseCase,
	limiter RateLimiter,
	bot adapter.Transport,
	tr *i18n.Bundle,
	logger *zerolog.Logger,
) *Dispatcher {
	l := logger.With().Str("component", "dispatcher").Logger()
	return &Dispatcher{
		store:    store,
		accounts: accounts,
		tarifs:   tarifs,
		reg:      reg,
		tarif:    tarif,
		code:     code,
		settings: settings,
		chat:     chat,
		limiter:  limiter,
		bot:      bot,
		tr:       tr,
		log:      &l,
	}
}

// Dispatch handles one update end to end. Handler failures are reported to
// the user as a generic error; drafts are never dropped on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, upd Update) {
	trace := uuid.NewString()
	log := d.log.With().Str("trace_id", trace).Int64("chat_id", upd.ChatID).Logger()

	unlock := d.store.Lock(upd.ChatID)
	defer unlock()

	if d.limiter != nil {
		allowed, err := d.limiter.Allow(ctx, upd.ChatID)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, letting the update through")
		} else if !allowed {
			metrics.IncRateLimitTriggered()
			lang := d.language(ctx, upd.ChatID)
			_ = d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "error.rate_limited"))
			return
		}
	}

	var err error
	switch {
	case upd.CallbackData != "":
		metrics.IncTelegramUpdate("callback")
		err = d.handleCallback(ctx, upd)
	case upd.Command != "":
		metrics.IncTelegramUpdate("command")
		err = d.handleCommand(ctx, upd)
	default:
		metrics.IncTelegramUpdate("text")
		err = d.handleText(ctx, upd)
	}
	if err != nil {
		log.Error().Err(err).Msg("update handling failed")
		lang := d.language(ctx, upd.ChatID)
		_ = d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "error.generic"))
	}
}

// snapshot reads the account through the session cache.
func (d *Dispatcher) snapshot(ctx context.Context, chatID int64) (*session.AccountSnapshot, error) {
	if snap, ok := d.store.Account().Get(chatID); ok {
		return snap, nil
	}
	acc, err := d.accounts.FindByChatID(ctx, chatID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("find account: %w", err)
		}
		acc = nil
	}
	snap := &session.AccountSnapshot{Account: acc, Exists: acc != nil}
	return d.store.Account().GetOrCreate(chatID, func() *session.AccountSnapshot { return snap }), nil
}

func (d *Dispatcher) language(ctx context.Context, chatID int64) model.Language {
	if snap, err := d.snapshot(ctx, chatID); err == nil && snap.Exists {
		return snap.Account.Settings.Language
	}
	if draft, ok := d.store.Registration().Get(chatID); ok {
		return draft.Language
	}
	return model.LanguageRU
}

func (d *Dispatcher) handleCommand(ctx context.Context, upd Update) error {
	snap, err := d.snapshot(ctx, upd.ChatID)
	if err != nil {
		return err
	}
	lang := d.language(ctx, upd.ChatID)

	if !snap.Exists && !unauthCommands[upd.Command] {
		return d.sendWelcome(ctx, upd.ChatID, lang)
	}

	switch upd.Command {
	case "start":
		if snap.Exists {
			return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.start"))
		}
		return d.reg.Start(ctx, upd.ChatID, upd.SenderName)

	case "menu":
		return d.sendMenu(ctx, upd.ChatID, lang)

	case "help":
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "help.text"))

	case "info":
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "info.text"))

	case "about":
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "about.text"))

	case "settings":
		return d.settings.Menu(ctx, snap.Account)

	case "chat":
		// a fresh chat drops every session record and the stored context
		if err := d.chat.ClearContext(ctx, snap.Account); err != nil {
			return err
		}
		d.store.DeleteAllForChat(upd.ChatID)
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.start"))

	case "reset":
		if err := d.chat.ClearContext(ctx, snap.Account); err != nil {
			return err
		}
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.context_cleared"))

	case "tarifs":
		return d.sendTarifs(ctx, upd.ChatID, lang)

	case "mytarif":
		return d.sendMyTarif(ctx, upd.ChatID, lang, snap.Account)

	case "tarif":
		if !snap.Account.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.tarif.Start(ctx, upd.ChatID, lang)

	case "code":
		if !snap.Account.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.code.Start(ctx, upd.ChatID, lang)

	default:
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "unknown.command"))
	}
}

// handleText routes free text to whichever flow owns the chat. When no flow
// does, the text is a chat question.
func (d *Dispatcher) handleText(ctx context.Context, upd Update) error {
	snap, err := d.snapshot(ctx, upd.ChatID)
	if err != nil {
		return err
	}
	lang := d.language(ctx, upd.ChatID)

	if !snap.Exists {
		if d.reg.Active(upd.ChatID) {
			return d.reg.HandleText(ctx, upd.ChatID, upd.Text)
		}
		return d.sendWelcome(ctx, upd.ChatID, lang)
	}

	switch {
	case d.tarif.Active(upd.ChatID):
		return d.tarif.HandleText(ctx, upd.ChatID, lang, upd.Text)
	case d.code.Active(upd.ChatID):
		return d.code.HandleText(ctx, upd.ChatID, lang, upd.Text)
	case d.settings.AwaitingInput(upd.ChatID):
		return d.settings.HandleText(ctx, snap.Account, upd.Text)
	}

	return d.ask(ctx, snap.Account, upd.Text)
}

// ask runs one chat question with a typing indicator held for the duration.
func (d *Dispatcher) ask(ctx context.Context, acc *model.Account, question string) error {
	lang := acc.Settings.Language
	stop := d.bot.SendTyping(ctx, acc.ChatID)
	answer, err := d.chat.Ask(ctx, acc, question)
	stop()
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			return d.bot.SendMessage(ctx, acc.ChatID, d.tr.T(lang, "error.no_text"))
		case errors.Is(err, domain.ErrTarifExpired):
			return d.bot.SendMessage(ctx, acc.ChatID, d.tr.T(lang, "quota.expired"))
		case errors.Is(err, domain.ErrDailyLimitReached):
			return d.bot.SendMessage(ctx, acc.ChatID, d.tr.T(lang, "quota.daily"))
		case errors.Is(err, domain.ErrTotalLimitReached):
			return d.bot.SendMessage(ctx, acc.ChatID, d.tr.T(lang, "quota.total"))
		}
		return err
	}
	return d.bot.SendMessage(ctx, acc.ChatID, answer)
}

func (d *Dispatcher) handleCallback(ctx context.Context, upd Update) error {
	snap, err := d.snapshot(ctx, upd.ChatID)
	if err != nil {
		return err
	}
	lang := d.language(ctx, upd.ChatID)
	data := upd.CallbackData

	if upd.MessageID != 0 {
		if err := d.bot.EditButtons(ctx, upd.ChatID, upd.MessageID, data); err != nil {
			d.log.Debug().Err(err).Msg("keyboard edit failed")
		}
	}

	switch {
	case data == flow.CBWelcomeStart || data == flow.CBRegStart:
		if snap.Exists {
			return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.start"))
		}
		return d.reg.Start(ctx, upd.ChatID, upd.SenderName)

	case data == flow.CBWelcomeInfo:
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "about.text"))

	case strings.HasPrefix(data, "reg_"):
		return d.reg.HandleButton(ctx, upd.ChatID, data, upd.SenderName)
	}

	if !snap.Exists {
		return d.sendWelcome(ctx, upd.ChatID, lang)
	}
	acc := snap.Account

	switch {
	case data == flow.CBShowMenu:
		return d.sendMenu(ctx, upd.ChatID, lang)
	case data == flow.CBShowAbout:
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "about.text"))
	case data == flow.CBShowInfo:
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "info.text"))
	case data == flow.CBShowSettings:
		return d.settings.Menu(ctx, acc)
	case data == flow.CBShowTarifs:
		return d.sendTarifs(ctx, upd.ChatID, lang)
	case data == flow.CBBackToChat:
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.start"))

	case data == flow.CBContextReset:
		if err := d.chat.ClearContext(ctx, acc); err != nil {
			return err
		}
		return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "chat.context_cleared"))

	case data == flow.CBTarifAddNew:
		if !acc.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.tarif.Start(ctx, upd.ChatID, lang)

	case data == flow.CBCodeAddNew:
		if !acc.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.code.Start(ctx, upd.ChatID, lang)

	case strings.HasPrefix(data, flow.CBTarifSelectPrefix):
		return d.sendTarifDetail(ctx, upd.ChatID, lang, flow.ParseQueryID(data))

	case strings.HasPrefix(data, "tarif_"):
		if !acc.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.tarif.HandleButton(ctx, upd.ChatID, lang, data)

	case strings.HasPrefix(data, "code_"):
		if !acc.IsAdmin {
			return domain.ErrNotAdmin
		}
		return d.code.HandleButton(ctx, upd.ChatID, lang, data)

	case strings.HasPrefix(data, "settings_") ||
		strings.HasPrefix(data, "toggle_") ||
		strings.HasPrefix(data, "context_") ||
		data == flow.CBShowLimits ||
		data == flow.CBSettingsSendCode ||
		data == flow.CBSettingsServiceInfo:
		return d.settings.HandleButton(ctx, acc, data)
	}

	return d.bot.SendMessage(ctx, upd.ChatID, d.tr.T(lang, "unknown.command"))
}

func (d *Dispatcher) sendWelcome(ctx context.Context, chatID int64, lang model.Language) error {
	rows := [][]adapter.InlineButton{
		{{Text: d.tr.T(lang, "welcome.start"), Data: flow.CBWelcomeStart}},
		{{Text: d.tr.T(lang, "welcome.info"), Data: flow.CBWelcomeInfo}},
	}
	return d.bot.SendPrompt(ctx, chatID, d.tr.T(lang, "welcome.text"), rows)
}

func (d *Dispatcher) sendMenu(ctx context.Context, chatID int64, lang model.Language) error {
	rows := [][]adapter.InlineButton{
		{{Text: d.tr.T(lang, "menu.btn_settings"), Data: flow.CBShowSettings}},
		{{Text: d.tr.T(lang, "menu.btn_tarifs"), Data: flow.CBShowTarifs}},
		{{Text: d.tr.T(lang, "menu.btn_info"), Data: flow.CBShowInfo}},
		{{Text: d.tr.T(lang, "menu.btn_chat"), Data: flow.CBBackToChat}},
	}
	return d.bot.SendPrompt(ctx, chatID, d.tr.T(lang, "menu.text"), rows)
}

func (d *Dispatcher) sendTarifs(ctx context.Context, chatID int64, lang model.Language) error {
	tarifs, err := d.tarifs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tarifs: %w", err)
	}
	var b strings.Builder
	b.WriteString(d.tr.T(lang, "tarifs.header"))
	rows := make([][]adapter.InlineButton, 0, len(tarifs))
	for _, t := range tarifs {
		b.WriteString("\n\n")
		b.WriteString(t.Title)
		b.WriteString("\n")
		b.WriteString(t.Description)
		prices, err := d.tarifs.ListPrices(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("list prices: %w", err)
		}
		for _, p := range prices {
			b.WriteString(fmt.Sprintf("\n%s: %d", strings.ToUpper(string(p.Currency)), p.Value))
		}
		rows = append(rows, []adapter.InlineButton{
			{Text: t.Title, Data: fmt.Sprintf("%s%d", flow.CBTarifSelectPrefix, t.ID)},
		})
	}
	return d.bot.SendPrompt(ctx, chatID, b.String(), rows)
}

func (d *Dispatcher) sendTarifDetail(ctx context.Context, chatID int64, lang model.Language, tarifID int64) error {
	tarif, err := d.tarifs.FindByID(ctx, tarifID)
	if err != nil {
		return fmt.Errorf("find tarif: %w", err)
	}
	var b strings.Builder
	b.WriteString(d.tr.T(lang, "tarifs.detail",
		tarif.Title,
		tarif.Description,
		tarif.DailyLimit,
		tarif.TotalLimit,
		tarif.MaxContext,
		int(tarif.Duration.Hours()/24),
	))
	prices, err := d.tarifs.ListPrices(ctx, tarifID)
	if err != nil {
		return fmt.Errorf("list prices: %w", err)
	}
	for _, p := range prices {
		b.WriteString(fmt.Sprintf("\n%s: %d", strings.ToUpper(string(p.Currency)), p.Value))
	}
	return d.bot.SendMessage(ctx, chatID, b.String())
}

func (d *Dispatcher) sendMyTarif(ctx context.Context, chatID int64, lang model.Language, acc *model.Account) error {
	tarif := acc.Activity.Tarif
	if tarif == nil {
		found, err := d.tarifs.FindByID(ctx, acc.Activity.TarifID)
		if err != nil {
			return fmt.Errorf("find tarif: %w", err)
		}
		tarif = found
	}
	text := d.tr.T(lang, "mytarif.text",
		tarif.Title,
		acc.Activity.DailyUsage, tarif.DailyLimit,
		acc.Activity.Usage, tarif.TotalLimit,
		acc.Activity.ExpiresAt.Format(time.DateOnly),
	)
	return d.bot.SendMessage(ctx, chatID, text)
}
