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

// sampling presets offered by the value keyboards
var (
	temperatureValues = []float64{0, 0.3, 0.5, 0.7, 1, 1.5, 2}
	topPValues        = []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1}
)

// Settings handles the settings surface: the menu, name and promo inputs,
// language switch, the context sub-menu and the sampling sub-flow. Unlike the
// wizards it is flag-driven, so a chat can answer at most one pending input.
type Settings struct {
	store    *session.Store
	accounts repository.AccountRepository
	codes    repository.CodeRepository
	tarifs   repository.TarifRepository
	bot      adapter.Transport
	tr       *i18n.Bundle
	log      *zerolog.Logger
}

func NewSettings(store *session.Store, accounts repository.AccountRepository, codes repository.CodeRepository, tarifs repository.TarifRepository, bot adapter.Transport, tr *i18n.Bundle, logger *zerolog.Logger) *Settings {
	l := logger.With().Str("flow", "settings").Logger()
	return &Settings{store: store, accounts: accounts, codes: codes, tarifs: tarifs, bot: bot, tr: tr, log: &l}
}

// AwaitingInput reports whether the chat's next free-text message answers a
// pending settings prompt.
func (f *Settings) AwaitingInput(chatID int64) bool {
	if s, ok := f.store.Settings().Get(chatID); ok && (s.AwaitingName || s.AwaitingPromo) {
		return true
	}
	if c, ok := f.store.Context().Get(chatID); ok && (c.AwaitingLength || c.AwaitingServiceInfo) {
		return true
	}
	return false
}

// Menu renders the settings menu keyboard.
func (f *Settings) Menu(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	id := strconv.FormatInt(acc.ID, 10)
	rows := [][]adapter.InlineButton{
		{{Text: f.tr.T(lang, "settings.btn_name"), Data: CBSettingsNamePrefix + id}},
		{{Text: f.tr.T(lang, "settings.btn_promo"), Data: CBSettingsSendCode}},
		{{Text: f.tr.T(lang, "settings.btn_language"), Data: CBSettingsLangPrefix + id}},
		{{Text: f.tr.T(lang, "settings.btn_context"), Data: CBShowLimits}},
		{{Text: f.tr.T(lang, "settings.btn_random"), Data: CBSettingsRandomPrefix + id}},
		{{Text: f.tr.T(lang, "settings.btn_tarifs"), Data: CBSettingsTarifsPrefix + id}},
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.menu"), rows)
}

// HandleText answers the single pending input. Precedence when several flags
// ended up set: name, promo, context length, service info.
func (f *Settings) HandleText(ctx context.Context, acc *model.Account, text string) error {
	chatID := acc.ChatID
	lang := acc.Settings.Language

	if s, ok := f.store.Settings().Get(chatID); ok {
		if s.AwaitingName {
			if err := f.accounts.ChangeName(ctx, acc.ID, text); err != nil {
				return fmt.Errorf("change name: %w", err)
			}
			f.clearSettingsFlags(chatID)
			f.store.Account().Delete(chatID)
			return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.name_changed"))
		}
		if s.AwaitingPromo {
			valid, err := f.codes.Validate(ctx, text)
			if err != nil {
				return fmt.Errorf("validate code: %w", err)
			}
			if !valid {
				metrics.IncFlowRetry("settings")
				return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.promo_invalid"))
			}
			if err := f.accounts.ActivateCode(ctx, acc.ID, text); err != nil {
				return fmt.Errorf("activate code: %w", err)
			}
			f.clearSettingsFlags(chatID)
			f.store.Account().Delete(chatID)
			return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.promo_activated"))
		}
	}

	if c, ok := f.store.Context().Get(chatID); ok {
		if c.AwaitingLength {
			return f.applyContextLength(ctx, acc, text)
		}
		if c.AwaitingServiceInfo {
			if err := f.accounts.ChangeServiceInfo(ctx, acc.ID, text); err != nil {
				return fmt.Errorf("change service info: %w", err)
			}
			f.store.Context().Update(chatID, func(c *session.ContextFlags) {
				c.AwaitingServiceInfo = false
			})
			f.store.Account().Delete(chatID)
			return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.service_changed"))
		}
	}
	return nil
}

func (f *Settings) applyContextLength(ctx context.Context, acc *model.Account, text string) error {
	chatID := acc.ChatID
	lang := acc.Settings.Language
	max := f.maxContext(acc)

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > max {
		metrics.IncFlowRetry("settings")
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.context_length_error", max))
	}
	if err := f.accounts.ChangeContextLength(ctx, acc.ID, n); err != nil {
		return fmt.Errorf("change context length: %w", err)
	}
	f.store.Context().Update(chatID, func(c *session.ContextFlags) {
		c.AwaitingLength = false
	})
	f.store.Account().Delete(chatID)
	return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.context_length_changed"))
}

// HandleButton routes a settings-surface callback. Prefix order matters: the
// random value and model prefixes both extend the bare random prefix.
func (f *Settings) HandleButton(ctx context.Context, acc *model.Account, data string) error {
	chatID := acc.ChatID
	lang := acc.Settings.Language

	switch {
	case strings.HasPrefix(data, CBSettingsNamePrefix):
		f.store.Settings().GetOrCreate(chatID, session.NewSettingsFlags)
		f.store.Settings().Update(chatID, func(s *session.SettingsFlags) {
			s.AwaitingName = true
			s.AwaitingPromo = false
		})
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.name_prompt"))

	case data == CBSettingsSendCode:
		f.store.Settings().GetOrCreate(chatID, session.NewSettingsFlags)
		f.store.Settings().Update(chatID, func(s *session.SettingsFlags) {
			s.AwaitingPromo = true
			s.AwaitingName = false
		})
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.promo_prompt"))

	case data == CBSettingsServiceInfo:
		f.store.Context().GetOrCreate(chatID, session.NewContextFlags)
		f.store.Context().Update(chatID, func(c *session.ContextFlags) {
			c.AwaitingServiceInfo = true
			c.AwaitingLength = false
		})
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.service_prompt"))

	case strings.HasPrefix(data, CBSettingsRandomValuePrefix):
		return f.handleRandomValue(ctx, acc, data)

	case strings.HasPrefix(data, CBSettingsRandomModelPrefix):
		return f.handleRandomModel(ctx, acc, data)

	case strings.HasPrefix(data, CBSettingsRandomPrefix):
		return f.renderRandomModels(ctx, acc)

	case strings.HasPrefix(data, CBSettingsLangPrefix):
		return f.renderLanguages(ctx, acc)

	case strings.HasPrefix(data, CBToggleLanguagePrefix):
		chosen := model.Language(ParseToggleValue(data))
		if chosen != model.LanguageRU && chosen != model.LanguageEN {
			return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "error.invalid_params"))
		}
		if err := f.accounts.ChangeLanguage(ctx, acc.ID, chosen); err != nil {
			return fmt.Errorf("change language: %w", err)
		}
		f.store.Account().Delete(chatID)
		return f.bot.SendMessage(ctx, chatID, f.tr.T(chosen, "settings.language_changed"))

	case data == CBShowLimits:
		return f.renderContextMenu(ctx, acc)

	case strings.HasPrefix(data, CBToggleContextPrefix):
		enabled := ParseToggleValue(data) == "on"
		if err := f.accounts.ToggleContext(ctx, acc.ID, enabled); err != nil {
			return fmt.Errorf("toggle context: %w", err)
		}
		f.store.Account().Delete(chatID)
		key := "settings.context_off"
		if enabled {
			key = "settings.context_on"
		}
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, key))

	case strings.HasPrefix(data, CBToggleServiceInfoPrefix):
		enabled := ParseToggleValue(data) == "on"
		if err := f.accounts.ToggleServiceInfo(ctx, acc.ID, enabled); err != nil {
			return fmt.Errorf("toggle service info: %w", err)
		}
		f.store.Account().Delete(chatID)
		key := "settings.service_info_off"
		if enabled {
			key = "settings.service_info_on"
		}
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, key))

	case data == CBContextLength:
		f.store.Context().GetOrCreate(chatID, session.NewContextFlags)
		f.store.Context().Update(chatID, func(c *session.ContextFlags) {
			c.AwaitingLength = true
			c.AwaitingServiceInfo = false
		})
		return f.renderContextLengths(ctx, acc)

	case strings.HasPrefix(data, CBContextLengthPrefix):
		n, _ := ParseContextLength(data)
		max := f.maxContext(acc)
		if n < 1 || n > max {
			return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.context_length_error", max))
		}
		if err := f.accounts.ChangeContextLength(ctx, acc.ID, n); err != nil {
			return fmt.Errorf("change context length: %w", err)
		}
		f.store.Context().Update(chatID, func(c *session.ContextFlags) {
			c.AwaitingLength = false
		})
		f.store.Account().Delete(chatID)
		return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.context_length_changed"))

	case strings.HasPrefix(data, CBSettingsTarifsPrefix):
		return f.renderTarifs(ctx, acc)
	}
	return nil
}

func (f *Settings) renderLanguages(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	id := strconv.FormatInt(acc.ID, 10)
	rows := [][]adapter.InlineButton{{
		{Text: "Русский", Data: CBToggleLanguagePrefix + id + "_" + string(model.LanguageRU)},
		{Text: "English", Data: CBToggleLanguagePrefix + id + "_" + string(model.LanguageEN)},
	}}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.language_prompt"), rows)
}

// renderContextMenu shows the toggles with their current state inverted, so
// every press flips something.
func (f *Settings) renderContextMenu(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	id := strconv.FormatInt(acc.ID, 10)

	contextToggle := adapter.InlineButton{
		Text: f.tr.T(lang, "settings.btn_context_on"),
		Data: CBToggleContextPrefix + id + "_on",
	}
	if acc.Context.Enabled {
		contextToggle = adapter.InlineButton{
			Text: f.tr.T(lang, "settings.btn_context_off"),
			Data: CBToggleContextPrefix + id + "_off",
		}
	}
	serviceToggle := adapter.InlineButton{
		Text: f.tr.T(lang, "settings.btn_service_on"),
		Data: CBToggleServiceInfoPrefix + id + "_on",
	}
	if acc.Context.UseServiceInfo {
		serviceToggle = adapter.InlineButton{
			Text: f.tr.T(lang, "settings.btn_service_off"),
			Data: CBToggleServiceInfoPrefix + id + "_off",
		}
	}

	rows := [][]adapter.InlineButton{
		{contextToggle},
		{{Text: f.tr.T(lang, "settings.btn_context_length"), Data: CBContextLength}},
		{serviceToggle},
		{{Text: f.tr.T(lang, "settings.btn_service_edit"), Data: CBSettingsServiceInfo}},
		{{Text: f.tr.T(lang, "settings.btn_context_reset"), Data: CBContextReset}},
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.context_menu"), rows)
}

func (f *Settings) renderContextLengths(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	max := f.maxContext(acc)
	id := acc.ID

	var rows [][]adapter.InlineButton
	var row []adapter.InlineButton
	for n := 1; n <= max && n <= 10; n++ {
		row = append(row, adapter.InlineButton{
			Text: strconv.Itoa(n),
			Data: fmt.Sprintf("%s%d_%d", CBContextLengthPrefix, n, id),
		})
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.context_length_prompt", max), rows)
}

func (f *Settings) renderRandomModels(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	id := strconv.FormatInt(acc.ID, 10)
	f.store.Settings().GetOrCreate(acc.ChatID, session.NewSettingsFlags)
	f.store.Settings().Update(acc.ChatID, func(s *session.SettingsFlags) {
		s.Random = session.RandomDraft{Step: 1}
	})
	rows := [][]adapter.InlineButton{
		{{Text: f.tr.T(lang, "settings.btn_random_temperature"), Data: CBSettingsRandomModelPrefix + string(model.RandomModelTemperature) + "_" + id}},
		{{Text: f.tr.T(lang, "settings.btn_random_topp"), Data: CBSettingsRandomModelPrefix + string(model.RandomModelTopP) + "_" + id}},
		{{Text: f.tr.T(lang, "settings.btn_random_both"), Data: CBSettingsRandomModelPrefix + string(model.RandomModelBoth) + "_" + id}},
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.random_models"), rows)
}

func (f *Settings) handleRandomModel(ctx context.Context, acc *model.Account, data string) error {
	chosen := model.RandomModel(ParseQueryName(data, CBSettingsRandomModelPrefix))
	switch chosen {
	case model.RandomModelTemperature, model.RandomModelTopP, model.RandomModelBoth:
	default:
		return f.bot.SendMessage(ctx, acc.ChatID, f.tr.T(acc.Settings.Language, "error.invalid_params"))
	}
	f.store.Settings().GetOrCreate(acc.ChatID, session.NewSettingsFlags)
	f.store.Settings().Update(acc.ChatID, func(s *session.SettingsFlags) {
		s.Random = session.RandomDraft{Model: chosen, Step: 1}
	})
	knob := model.RandomModelTemperature
	if chosen == model.RandomModelTopP {
		knob = model.RandomModelTopP
	}
	return f.renderRandomValues(ctx, acc, knob)
}

func (f *Settings) renderRandomValues(ctx context.Context, acc *model.Account, knob model.RandomModel) error {
	lang := acc.Settings.Language
	values := temperatureValues
	if knob == model.RandomModelTopP {
		values = topPValues
	}
	id := acc.ID

	var row []adapter.InlineButton
	for _, v := range values {
		s := strconv.FormatFloat(v, 'g', -1, 64)
		row = append(row, adapter.InlineButton{
			Text: s,
			Data: fmt.Sprintf("%s%s_%s_%d", CBSettingsRandomValuePrefix, knob, s, id),
		})
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, f.tr.T(lang, "settings.random_values", string(knob)), [][]adapter.InlineButton{row})
}

// handleRandomValue records the pressed value. For "both" the first press
// stores temperature and re-prompts for topP; any other press persists.
func (f *Settings) handleRandomValue(ctx context.Context, acc *model.Account, data string) error {
	chatID := acc.ChatID
	lang := acc.Settings.Language
	knob, value, _ := ParseRandomValue(data)

	s, ok := f.store.Settings().Get(chatID)
	if !ok || s.Random.Model == "" {
		return f.renderRandomModels(ctx, acc)
	}
	draft := s.Random

	if draft.Model == model.RandomModelBoth && draft.Step == 1 {
		f.store.Settings().Update(chatID, func(s *session.SettingsFlags) {
			s.Random.Temperature = value
			s.Random.Step = 2
		})
		return f.renderRandomValues(ctx, acc, model.RandomModelTopP)
	}

	temperature := acc.Settings.Temperature
	topP := acc.Settings.TopP
	switch model.RandomModel(knob) {
	case model.RandomModelTemperature:
		temperature = value
	case model.RandomModelTopP:
		topP = value
	}
	if draft.Model == model.RandomModelBoth {
		temperature = draft.Temperature
	}

	if err := f.accounts.ChangeRandomModel(ctx, acc.ID, draft.Model, temperature, topP); err != nil {
		return fmt.Errorf("change random model: %w", err)
	}
	f.store.Settings().Update(chatID, func(s *session.SettingsFlags) {
		s.Random = session.RandomDraft{Step: 1}
	})
	f.store.Account().Delete(chatID)
	return f.bot.SendMessage(ctx, chatID, f.tr.T(lang, "settings.random_changed"))
}

func (f *Settings) renderTarifs(ctx context.Context, acc *model.Account) error {
	lang := acc.Settings.Language
	tarifs, err := f.tarifs.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list tarifs: %w", err)
	}

	var b strings.Builder
	b.WriteString(f.tr.T(lang, "tarifs.header"))
	rows := make([][]adapter.InlineButton, 0, len(tarifs))
	for _, t := range tarifs {
		b.WriteString("\n\n")
		b.WriteString(t.Title)
		b.WriteString("\n")
		b.WriteString(t.Description)
		prices, err := f.tarifs.ListPrices(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("list prices: %w", err)
		}
		for _, p := range prices {
			b.WriteString(fmt.Sprintf("\n%s: %d", strings.ToUpper(string(p.Currency)), p.Value))
		}
		rows = append(rows, []adapter.InlineButton{
			{Text: t.Title, Data: fmt.Sprintf("%s%d", CBTarifSelectPrefix, t.ID)},
		})
	}
	return f.bot.SendPrompt(ctx, acc.ChatID, b.String(), rows)
}

func (f *Settings) clearSettingsFlags(chatID int64) {
	f.store.Settings().Update(chatID, func(s *session.SettingsFlags) {
		s.AwaitingName = false
		s.AwaitingPromo = false
	})
}

func (f *Settings) maxContext(acc *model.Account) int {
	if acc.Activity.Tarif != nil && acc.Activity.Tarif.MaxContext > 0 {
		return acc.Activity.Tarif.MaxContext
	}
	return acc.Context.Length
}
