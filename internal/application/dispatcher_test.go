//go:build !integration

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/flow"
	"telegram-gpt-bot/internal/infra/i18n"
	"telegram-gpt-bot/internal/session"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func newTestBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	bundle, err := i18n.NewBundle(i18n.LocalesFS)
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	return bundle
}

// ---- transport mock ----

type sentMsg struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

type fakeBot struct {
	Sent []sentMsg
}

func (b *fakeBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	b.Sent = append(b.Sent, sentMsg{ChatID: chatID, Text: text})
	return nil
}

func (b *fakeBot) SendPrompt(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	b.Sent = append(b.Sent, sentMsg{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (b *fakeBot) SendTyping(ctx context.Context, chatID int64) func() { return func() {} }

func (b *fakeBot) EditButtons(ctx context.Context, chatID int64, messageID int, pressed string) error {
	return nil
}

func (b *fakeBot) last(t *testing.T) sentMsg {
	t.Helper()
	if len(b.Sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return b.Sent[len(b.Sent)-1]
}

// ---- repo mocks ----

type memAccountRepo struct {
	byChat map[int64]*model.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byChat: map[int64]*model.Account{}}
}

func (m *memAccountRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	acc, ok := m.byChat[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memAccountRepo) Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error) {
	acc := &model.Account{
		ID:     int64(len(m.byChat) + 1),
		ChatID: chatID,
		Name:   info.Name,
		Settings: model.Settings{
			Language:    info.Language,
			RandomModel: model.RandomModelTemperature,
			Temperature: 1,
			TopP:        1,
		},
		Context: model.ContextSettings{ID: chatID, Enabled: true, Length: 5},
		Activity: model.Activity{
			Tarif:     &model.Tarif{ID: 1, Name: model.WelcomeCode, DailyLimit: 100, TotalLimit: 1000, MaxContext: 5},
			ExpiresAt: time.Now().Add(24 * time.Hour),
			UpdatedAt: time.Now(),
		},
		RegisteredAt: time.Now(),
	}
	m.byChat[chatID] = acc
	return acc, nil
}

func (m *memAccountRepo) ChangeName(ctx context.Context, id int64, name string) error      { return nil }
func (m *memAccountRepo) ChangeLanguage(ctx context.Context, id int64, l model.Language) error {
	return nil
}
func (m *memAccountRepo) ChangeContextLength(ctx context.Context, id int64, n int) error { return nil }
func (m *memAccountRepo) ChangeServiceInfo(ctx context.Context, id int64, s string) error {
	return nil
}
func (m *memAccountRepo) ChangeRandomModel(ctx context.Context, id int64, rm model.RandomModel, temperature, topP float64) error {
	return nil
}
func (m *memAccountRepo) ToggleContext(ctx context.Context, id int64, on bool) error     { return nil }
func (m *memAccountRepo) ToggleServiceInfo(ctx context.Context, id int64, on bool) error { return nil }
func (m *memAccountRepo) ActivateCode(ctx context.Context, id int64, code string) error  { return nil }
func (m *memAccountRepo) UpdateUsage(ctx context.Context, id int64, delta int) error     { return nil }
func (m *memAccountRepo) ResetDailyUsage(ctx context.Context, id int64) error            { return nil }

type memTarifRepo struct {
	tarifs []*model.Tarif
}

func (m *memTarifRepo) Create(ctx context.Context, t *model.Tarif) (*model.Tarif, error) {
	t.ID = int64(len(m.tarifs) + 1)
	m.tarifs = append(m.tarifs, t)
	return t, nil
}

func (m *memTarifRepo) CreatePrice(ctx context.Context, p *model.Price) (*model.Price, error) {
	return p, nil
}

func (m *memTarifRepo) FindByID(ctx context.Context, id int64) (*model.Tarif, error) {
	for _, t := range m.tarifs {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTarifRepo) ListAll(ctx context.Context) ([]*model.Tarif, error) { return m.tarifs, nil }

func (m *memTarifRepo) ListPrices(ctx context.Context, tarifID int64) ([]*model.Price, error) {
	return nil, nil
}

type memCodeRepo struct{}

func (memCodeRepo) Create(ctx context.Context, c *model.PromoCode) (*model.PromoCode, error) {
	return c, nil
}

func (memCodeRepo) FindByValue(ctx context.Context, v string) (*model.PromoCode, error) {
	return nil, domain.ErrNotFound
}

func (memCodeRepo) Validate(ctx context.Context, v string) (bool, error) {
	return v == model.WelcomeCode, nil
}

// ---- usecase and limiter stubs ----

type stubChat struct {
	answer  string
	askErr  error
	asked   []string
	cleared int
}

func (s *stubChat) Ask(ctx context.Context, acc *model.Account, question string) (string, error) {
	s.asked = append(s.asked, question)
	if s.askErr != nil {
		return "", s.askErr
	}
	return s.answer, nil
}

func (s *stubChat) ClearContext(ctx context.Context, acc *model.Account) error {
	s.cleared++
	return nil
}

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubLimiter) Allow(ctx context.Context, chatID int64) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

// ---- harness ----

type harness struct {
	disp     *Dispatcher
	bot      *fakeBot
	accounts *memAccountRepo
	store    *session.Store
	tarifs   *memTarifRepo
	chat     *stubChat
	limiter  *stubLimiter
	bundle   *i18n.Bundle
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bot := &fakeBot{}
	accounts := newMemAccountRepo()
	tarifs := &memTarifRepo{}
	codes := memCodeRepo{}
	store := session.NewStore(time.Minute)
	bundle := newTestBundle(t)
	logger := newTestLogger()
	chat := &stubChat{answer: "the answer"}
	limiter := &stubLimiter{allowed: true}

	reg := flow.NewRegistration(store, accounts, codes, bot, bundle, logger)
	tarifFlow := flow.NewTarif(store, tarifs, bot, bundle, logger)
	codeFlow := flow.NewCode(store, codes, tarifs, bot, bundle, logger)
	settings := flow.NewSettings(store, accounts, codes, tarifs, bot, bundle, logger)

	disp := NewDispatcher(store, accounts, tarifs, reg, tarifFlow, codeFlow, settings, chat, limiter, bot, bundle, logger)
	return &harness{disp: disp, bot: bot, accounts: accounts, store: store, tarifs: tarifs, chat: chat, limiter: limiter, bundle: bundle}
}

func (h *harness) register(t *testing.T, chatID int64, lang model.Language) *model.Account {
	t.Helper()
	acc, err := h.accounts.Create(context.Background(), chatID, model.RegistrationInfo{
		Name: "tester", Code: model.WelcomeCode, Language: lang,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

const chatID = int64(700)

func TestDispatch_UnregisteredGetsWelcome(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.disp.Dispatch(ctx, Update{ChatID: chatID, Text: "hello"})

	msg := h.bot.last(t)
	if msg.Text != h.bundle.T(model.LanguageRU, "welcome.text") {
		t.Fatalf("text = %q, want welcome", msg.Text)
	}
	if len(msg.Rows) != 2 || msg.Rows[0][0].Data != flow.CBWelcomeStart {
		t.Fatalf("unexpected welcome keyboard: %+v", msg.Rows)
	}
	if len(h.chat.asked) != 0 {
		t.Fatal("chat must not run for unregistered users")
	}
}

func TestDispatch_UnregisteredCommandGating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.disp.Dispatch(ctx, Update{ChatID: chatID, Command: "settings"})
	if msg := h.bot.last(t); msg.Text != h.bundle.T(model.LanguageRU, "welcome.text") {
		t.Fatalf("gated command should welcome, got %q", msg.Text)
	}

	h.disp.Dispatch(ctx, Update{ChatID: chatID, Command: "help"})
	if msg := h.bot.last(t); msg.Text != h.bundle.T(model.LanguageRU, "help.text") {
		t.Fatalf("help must work unregistered, got %q", msg.Text)
	}
}

func TestDispatch_TextGoesToChat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, chatID, model.LanguageEN)

	h.disp.Dispatch(ctx, Update{ChatID: chatID, Text: "what is go"})

	if len(h.chat.asked) != 1 || h.chat.asked[0] != "what is go" {
		t.Fatalf("asked = %v", h.chat.asked)
	}
	if msg := h.bot.last(t); msg.Text != "the answer" {
		t.Fatalf("text = %q, want the model answer", msg.Text)
	}
}

func TestDispatch_QuotaErrorsAreTranslated(t *testing.T) {
	cases := []struct {
		err error
		key string
	}{
		{domain.ErrTarifExpired, "quota.expired"},
		{domain.ErrDailyLimitReached, "quota.daily"},
		{domain.ErrTotalLimitReached, "quota.total"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			h := newHarness(t)
			h.register(t, chatID, model.LanguageEN)
			h.chat.askErr = tc.err

			h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Text: "q"})

			want := h.bundle.T(model.LanguageEN, tc.key)
			if msg := h.bot.last(t); msg.Text != want {
				t.Fatalf("text = %q, want %q", msg.Text, want)
			}
		})
	}
}

func TestDispatch_HandlerFailureIsGenericError(t *testing.T) {
	h := newHarness(t)
	h.register(t, chatID, model.LanguageEN)
	h.chat.askErr = errors.New("provider down")

	h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Text: "q"})

	want := h.bundle.T(model.LanguageEN, "error.generic")
	if msg := h.bot.last(t); msg.Text != want {
		t.Fatalf("text = %q, want %q", msg.Text, want)
	}
}

func TestDispatch_RateLimit(t *testing.T) {
	t.Run("denied updates are rejected", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, chatID, model.LanguageEN)
		h.limiter.allowed = false

		h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Text: "q"})

		want := h.bundle.T(model.LanguageEN, "error.rate_limited")
		if msg := h.bot.last(t); msg.Text != want {
			t.Fatalf("text = %q, want %q", msg.Text, want)
		}
		if len(h.chat.asked) != 0 {
			t.Fatal("denied update must not reach the chat usecase")
		}
	})

	t.Run("limiter failure lets the update through", func(t *testing.T) {
		h := newHarness(t)
		h.register(t, chatID, model.LanguageEN)
		h.limiter.err = errors.New("redis down")

		h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Text: "q"})

		if len(h.chat.asked) != 1 {
			t.Fatal("update should be processed when the limiter is unavailable")
		}
	})
}

func TestDispatch_AdminGating(t *testing.T) {
	h := newHarness(t)
	h.register(t, chatID, model.LanguageEN)

	h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Command: "tarif"})

	want := h.bundle.T(model.LanguageEN, "error.generic")
	if msg := h.bot.last(t); msg.Text != want {
		t.Fatalf("non-admin /tarif should fail generically, got %q", msg.Text)
	}
	if _, ok := h.store.Tarif().Get(chatID); ok {
		t.Fatal("tarif draft must not be created for non-admins")
	}
}

func TestDispatch_ResetClearsContext(t *testing.T) {
	h := newHarness(t)
	h.register(t, chatID, model.LanguageEN)

	h.disp.Dispatch(context.Background(), Update{ChatID: chatID, Command: "reset"})

	if h.chat.cleared != 1 {
		t.Fatalf("cleared = %d, want 1", h.chat.cleared)
	}
	want := h.bundle.T(model.LanguageEN, "chat.context_cleared")
	if msg := h.bot.last(t); msg.Text != want {
		t.Fatalf("text = %q, want %q", msg.Text, want)
	}
}

func TestDispatch_TarifSelectShowsDetail(t *testing.T) {
	h := newHarness(t)
	h.register(t, chatID, model.LanguageEN)
	tarif, err := h.tarifs.Create(context.Background(), &model.Tarif{
		Name:       "pro",
		Title:      "Pro",
		DailyLimit: 50,
		TotalLimit: 500,
		MaxContext: 10,
		Duration:   30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("seed tarif: %v", err)
	}

	h.disp.Dispatch(context.Background(), Update{
		ChatID:       chatID,
		CallbackData: fmt.Sprintf("%s%d", flow.CBTarifSelectPrefix, tarif.ID),
	})

	msg := h.bot.last(t)
	if !strings.Contains(msg.Text, "Pro") {
		t.Fatalf("text = %q, want tarif title", msg.Text)
	}
	if msg.Text == h.bundle.T(model.LanguageEN, "error.generic") {
		t.Fatal("tarif select should not require admin rights")
	}
}

func TestDispatch_WelcomeButtonStartsRegistration(t *testing.T) {
	h := newHarness(t)

	h.disp.Dispatch(context.Background(), Update{ChatID: chatID, CallbackData: flow.CBWelcomeStart, SenderName: "tester"})

	if !h.disp.reg.Active(chatID) {
		t.Fatal("registration flow should be active after the welcome button")
	}
}
