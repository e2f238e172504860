package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// Tarif drives the admin tariff-creation wizard: eight free-text fields, type
// and duration buttons, then a currency/price loop that collects any number
// of prices before the tariff and its prices are persisted together.
type Tarif struct {
	store  *session.Store
	tarifs repository.TarifRepository
	bot    adapter.Transport
	tr     *i18n.Bundle
	log    *zerolog.Logger
}

func NewTarif(store *session.Store, tarifs repository.TarifRepository, bot adapter.Transport, tr *i18n.Bundle, logger *zerolog.Logger) *Tarif {
	l := logger.With().Str("flow", "tarif").Logger()
	return &Tarif{store: store, tarifs: tarifs, bot: bot, tr: tr, log: &l}
}

func (f *Tarif) Active(chatID int64) bool {
	_, ok := f.store.Tarif().Get(chatID)
	return ok
}

func (f *Tarif) Start(ctx context.Context, chatID int64, lang model.Language) error {
	d := f.store.Tarif().GetOrCreate(chatID, func() *session.TarifDraft {
		metrics.IncFlowStarted("tarif")
		return session.NewTarifDraft()
	})
	f.store.Prices().GetOrCreate(chatID, session.NewPriceDraftList)
	return f.render(ctx, chatID, lang, d, false)
}

// HandleText applies a free-text answer. A numeric state that receives a
// non-integer, and any button-only state, re-render unchanged with the
// wrong-input banner.
func (f *Tarif) HandleText(ctx context.Context, chatID int64, lang model.Language, text string) error {
	d, ok := f.store.Tarif().Get(chatID)
	if !ok {
		return nil
	}
	if d.State.ButtonOnly() {
		return f.retry(ctx, chatID, lang, d)
	}
	if d.State.NumericInput() {
		n, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil || n < 0 {
			return f.retry(ctx, chatID, lang, d)
		}
		return f.applyNumber(ctx, chatID, lang, d, n)
	}

	switch d.State {
	case session.TarifAwaitingName:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Name = text
			d.State = session.TarifAwaitingTitle
		})
	case session.TarifAwaitingTitle:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Title = text
			d.State = session.TarifAwaitingDescription
		})
	case session.TarifAwaitingDescription:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Description = text
			d.State = session.TarifAwaitingImage
		})
	case session.TarifAwaitingImage:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.ImageURL = text
			d.State = session.TarifAwaitingTotalLimit
		})
	default:
		return nil
	}
	return f.renderCurrent(ctx, chatID, lang)
}

func (f *Tarif) applyNumber(ctx context.Context, chatID int64, lang model.Language, d *session.TarifDraft, n int) error {
	switch d.State {
	case session.TarifAwaitingTotalLimit:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.TotalLimit = n
			d.State = session.TarifAwaitingDailyLimit
		})
	case session.TarifAwaitingDailyLimit:
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.DailyLimit = n
			d.State = session.TarifAwaitingMaxContext
		})
	case session.TarifAwaitingMaxContext:
		if n == 0 {
			return f.retry(ctx, chatID, lang, d)
		}
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.MaxContext = n
			d.State = session.TarifAwaitingDuration
		})
	case session.TarifAwaitingDuration:
		// free-text duration is a day count
		if n == 0 {
			return f.retry(ctx, chatID, lang, d)
		}
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Duration = time.Duration(n) * 24 * time.Hour
			d.State = session.TarifAwaitingType
		})
	case session.TarifAwaitingPrice:
		prices, ok := f.store.Prices().Get(chatID)
		if !ok || !prices.SetLastValue(n) {
			return f.retry(ctx, chatID, lang, d)
		}
		f.store.Prices().Touch(chatID)
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.State = session.TarifAwaitingDecision
		})
	}
	return f.renderCurrent(ctx, chatID, lang)
}

func (f *Tarif) HandleButton(ctx context.Context, chatID int64, lang model.Language, data string) error {
	d, ok := f.store.Tarif().Get(chatID)
	if !ok {
		return nil
	}

	switch {
	case strings.HasPrefix(data, CBTarifTypePrefix):
		if d.State != session.TarifAwaitingType {
			return f.render(ctx, chatID, lang, d, false)
		}
		typ := model.TarifType(strings.TrimPrefix(data, CBTarifTypePrefix))
		if typ != model.TarifTypeLimit && typ != model.TarifTypeSubscribe {
			return f.retry(ctx, chatID, lang, d)
		}
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Type = typ
			d.State = session.TarifAwaitingCurrency
		})
		return f.renderCurrent(ctx, chatID, lang)

	case strings.HasPrefix(data, CBTarifDurationPrefix):
		if d.State != session.TarifAwaitingDuration {
			return f.render(ctx, chatID, lang, d, false)
		}
		var dur time.Duration
		switch strings.TrimPrefix(data, CBTarifDurationPrefix) {
		case "day":
			dur = model.DurationDay
		case "month":
			dur = model.DurationMonth
		case "year":
			dur = model.DurationYear
		default:
			return f.retry(ctx, chatID, lang, d)
		}
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.Duration = dur
			d.State = session.TarifAwaitingType
		})
		return f.renderCurrent(ctx, chatID, lang)

	case strings.HasPrefix(data, CBTarifCurrencyPrefix):
		if d.State != session.TarifAwaitingCurrency {
			return f.render(ctx, chatID, lang, d, false)
		}
		cur := model.Currency(strings.TrimPrefix(data, CBTarifCurrencyPrefix))
		f.store.Prices().Update(chatID, func(l *session.PriceDraftList) {
			l.Append(cur)
		})
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.State = session.TarifAwaitingPrice
		})
		return f.renderCurrent(ctx, chatID, lang)

	case data == CBTarifAddPrice:
		if d.State != session.TarifAwaitingDecision {
			return f.render(ctx, chatID, lang, d, false)
		}
		// collected prices stay; the loop returns to currency choice
		f.store.Tarif().Update(chatID, func(d *session.TarifDraft) {
			d.State = session.TarifAwaitingCurrency
		})
		return f.renderCurrent(ctx, chatID, lang)

	case data == CBTarifContinue:
		if d.State != session.TarifAwaitingDecision {
			return f.render(ctx, chatID, lang, d, false)
		}
		return f.finalize(ctx, chatID, lang, d)
	}
	return nil
}

// finalize persists the tariff and every collected price. Drafts survive a
// persistence failure so the admin can press continue again.
func (f *Tarif) finalize(ctx context.Context, chatID int64, lang model.Language, d *session.TarifDraft) error {
	tarif, err := model.NewTarif(d.Name, d.Title, d.Description, d.ImageURL,
		d.TotalLimit, d.DailyLimit, d.MaxContext, d.Duration, d.Type)
	if err != nil {
		return fmt.Errorf("build tarif: %w", err)
	}
	created, err := f.tarifs.Create(ctx, tarif)
	if err != nil {
		return fmt.Errorf("create tarif: %w", err)
	}
	if prices, ok := f.store.Prices().Get(chatID); ok {
		for _, p := range prices.Prices {
			price := &model.Price{TarifID: created.ID, Value: p.Value, Currency: p.Currency}
			if _, err := f.tarifs.CreatePrice(ctx, price); err != nil {
				return fmt.Errorf("create price %s: %w", p.Currency, err)
			}
		}
	}
	f.store.Tarif().Delete(chatID)
	f.store.Prices().Delete(chatID)
	metrics.IncFlowCompleted("tarif")
	f.log.Info().Int64("tarif_id", created.ID).Str("name", created.Name).Msg("tariff created")
	return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "tarif.done", created.Name))
}

func (f *Tarif) retry(ctx context.Context, chatID int64, lang model.Language, d *session.TarifDraft) error {
	metrics.IncFlowRetry("tarif")
	return f.render(ctx, chatID, lang, d, true)
}

func (f *Tarif) renderCurrent(ctx context.Context, chatID int64, lang model.Language) error {
	d, ok := f.store.Tarif().Get(chatID)
	if !ok {
		return nil
	}
	return f.render(ctx, chatID, lang, d, false)
}

func (f *Tarif) render(ctx context.Context, chatID int64, lang model.Language, d *session.TarifDraft, wrong bool) error {
	prompt := func(key string) string {
		text := f.tr.T(lang, key)
		if wrong {
			text = f.tr.T(lang, "tarif.wrong") + "\n" + text
		}
		return text
	}

	switch d.State {
	case session.TarifAwaitingName:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.name"))
	case session.TarifAwaitingTitle:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.title"))
	case session.TarifAwaitingDescription:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.description"))
	case session.TarifAwaitingImage:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.image"))
	case session.TarifAwaitingTotalLimit:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.total_limit"))
	case session.TarifAwaitingDailyLimit:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.daily_limit"))
	case session.TarifAwaitingMaxContext:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.max_context"))

	case session.TarifAwaitingDuration:
		rows := [][]adapter.InlineButton{{
			{Text: f.tr.T(lang, "tarif.btn_duration_day"), Data: CBTarifDurationPrefix + "day"},
			{Text: f.tr.T(lang, "tarif.btn_duration_month"), Data: CBTarifDurationPrefix + "month"},
			{Text: f.tr.T(lang, "tarif.btn_duration_year"), Data: CBTarifDurationPrefix + "year"},
		}}
		return f.bot.SendPrompt(ctx, chatID, prompt("tarif.duration"), rows)

	case session.TarifAwaitingType:
		rows := [][]adapter.InlineButton{{
			{Text: f.tr.T(lang, "tarif.btn_type_limit"), Data: CBTarifTypePrefix + string(model.TarifTypeLimit)},
			{Text: f.tr.T(lang, "tarif.btn_type_subscribe"), Data: CBTarifTypePrefix + string(model.TarifTypeSubscribe)},
		}}
		return f.bot.SendPrompt(ctx, chatID, prompt("tarif.type"), rows)

	case session.TarifAwaitingCurrency:
		var row []adapter.InlineButton
		for _, c := range model.Currencies {
			row = append(row, adapter.InlineButton{
				Text: strings.ToUpper(string(c)),
				Data: CBTarifCurrencyPrefix + string(c),
			})
		}
		return f.bot.SendPrompt(ctx, chatID, prompt("tarif.currency"), [][]adapter.InlineButton{row})

	case session.TarifAwaitingPrice:
		return f.bot.SendMessage(ctx, chatID, prompt("tarif.price"))

	case session.TarifAwaitingDecision:
		var lines []string
		if prices, ok := f.store.Prices().Get(chatID); ok {
			for _, p := range prices.Prices {
				lines = append(lines, fmt.Sprintf("%s: %d", strings.ToUpper(string(p.Currency)), p.Value))
			}
		}
		text := f.tr.T(lang, "tarif.decision", d.Name, strings.Join(lines, "\n"))
		if wrong {
			text = f.tr.T(lang, "tarif.wrong") + "\n" + text
		}
		rows := [][]adapter.InlineButton{
			{{Text: f.tr.T(lang, "tarif.btn_add_price"), Data: CBTarifAddPrice}},
			{{Text: f.tr.T(lang, "tarif.btn_continue"), Data: CBTarifContinue}},
		}
		return f.bot.SendPrompt(ctx, chatID, text, rows)
	}
	return nil
}
