package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
	"telegram-gpt-bot/internal/infra/i18n"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	b, err := i18n.NewBundle(i18n.LocalesFS)
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	return b
}

// sentMessage records one outgoing message or prompt.
type sentMessage struct {
	ChatID int64
	Text   string
	Rows   [][]adapter.InlineButton
}

// fakeBot is an in-memory Transport used by unit tests.
type fakeBot struct {
	mu      sync.Mutex
	Sent    []sentMessage
	sendErr error
}

func newFakeBot() *fakeBot { return &fakeBot{} }

func (b *fakeBot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sent = append(b.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (b *fakeBot) SendPrompt(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sent = append(b.Sent, sentMessage{ChatID: chatID, Text: text, Rows: rows})
	return nil
}

func (b *fakeBot) SendTyping(ctx context.Context, chatID int64) func() {
	return func() {}
}

func (b *fakeBot) EditButtons(ctx context.Context, chatID int64, messageID int, pressed string) error {
	return nil
}

func (b *fakeBot) last() sentMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Sent) == 0 {
		return sentMessage{}
	}
	return b.Sent[len(b.Sent)-1]
}

// memAccountRepo is a small in-memory AccountRepository for unit tests.
type memAccountRepo struct {
	mu        sync.RWMutex
	byChat    map[int64]*model.Account
	nextID    int64
	createErr error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byChat: make(map[int64]*model.Account), nextID: 1}
}

func (m *memAccountRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.byChat[chatID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if err := info.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byChat[chatID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	a := &model.Account{
		ID:     m.nextID,
		ChatID: chatID,
		Name:   info.Name,
		Settings: model.Settings{
			Language:    info.Language,
			RandomModel: model.RandomModelTemperature,
			Temperature: 1,
		},
		Context:      model.ContextSettings{ID: m.nextID, Enabled: true, Length: 5},
		RegisteredAt: time.Now(),
	}
	m.nextID++
	m.byChat[chatID] = a
	cp := *a
	return &cp, nil
}

func (m *memAccountRepo) update(accountID int64, fn func(*model.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byChat {
		if a.ID == accountID {
			fn(a)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memAccountRepo) ChangeName(ctx context.Context, accountID int64, name string) error {
	return m.update(accountID, func(a *model.Account) { a.Name = name })
}

func (m *memAccountRepo) ChangeLanguage(ctx context.Context, accountID int64, lang model.Language) error {
	return m.update(accountID, func(a *model.Account) { a.Settings.Language = lang })
}

func (m *memAccountRepo) ChangeContextLength(ctx context.Context, accountID int64, length int) error {
	return m.update(accountID, func(a *model.Account) { a.Context.Length = length })
}

func (m *memAccountRepo) ChangeServiceInfo(ctx context.Context, accountID int64, info string) error {
	return m.update(accountID, func(a *model.Account) { a.Context.ServiceInfo = info })
}

func (m *memAccountRepo) ChangeRandomModel(ctx context.Context, accountID int64, rm model.RandomModel, temperature, topP float64) error {
	return m.update(accountID, func(a *model.Account) {
		a.Settings.RandomModel = rm
		a.Settings.Temperature = temperature
		a.Settings.TopP = topP
	})
}

func (m *memAccountRepo) ToggleContext(ctx context.Context, accountID int64, enabled bool) error {
	return m.update(accountID, func(a *model.Account) { a.Context.Enabled = enabled })
}

func (m *memAccountRepo) ToggleServiceInfo(ctx context.Context, accountID int64, enabled bool) error {
	return m.update(accountID, func(a *model.Account) { a.Context.UseServiceInfo = enabled })
}

func (m *memAccountRepo) ActivateCode(ctx context.Context, accountID int64, codeValue string) error {
	return m.update(accountID, func(a *model.Account) { a.Activity.TarifID++ })
}

func (m *memAccountRepo) UpdateUsage(ctx context.Context, accountID int64, delta int) error {
	return m.update(accountID, func(a *model.Account) {
		a.Activity.Usage += delta
		a.Activity.DailyUsage += delta
		a.Activity.UpdatedAt = time.Now()
	})
}

func (m *memAccountRepo) ResetDailyUsage(ctx context.Context, accountID int64) error {
	return m.update(accountID, func(a *model.Account) { a.Activity.DailyUsage = 0 })
}

// memTarifRepo is a small in-memory TarifRepository for unit tests.
type memTarifRepo struct {
	mu        sync.RWMutex
	tarifs    map[int64]*model.Tarif
	prices    []*model.Price
	nextID    int64
	createErr error
}

func newMemTarifRepo() *memTarifRepo {
	return &memTarifRepo{tarifs: make(map[int64]*model.Tarif), nextID: 1}
}

func (m *memTarifRepo) Create(ctx context.Context, tarif *model.Tarif) (*model.Tarif, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tarif
	cp.ID = m.nextID
	m.nextID++
	m.tarifs[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memTarifRepo) CreatePrice(ctx context.Context, price *model.Price) (*model.Price, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *price
	cp.ID = int64(len(m.prices) + 1)
	m.prices = append(m.prices, &cp)
	out := cp
	return &out, nil
}

func (m *memTarifRepo) FindByID(ctx context.Context, id int64) (*model.Tarif, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tarifs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTarifRepo) ListAll(ctx context.Context) ([]*model.Tarif, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Tarif, 0, len(m.tarifs))
	for i := int64(1); i < m.nextID; i++ {
		if t, ok := m.tarifs[i]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTarifRepo) ListPrices(ctx context.Context, tarifID int64) ([]*model.Price, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Price
	for _, p := range m.prices {
		if p.TarifID == tarifID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memCodeRepo is a small in-memory CodeRepository for unit tests.
type memCodeRepo struct {
	mu        sync.RWMutex
	byValue   map[string]*model.PromoCode
	nextID    int64
	createErr error
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{byValue: make(map[string]*model.PromoCode), nextID: 1}
}

func (m *memCodeRepo) Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byValue[code.Value]; ok {
		return nil, domain.ErrAlreadyExists
	}
	cp := *code
	cp.ID = m.nextID
	m.nextID++
	m.byValue[cp.Value] = &cp
	out := cp
	return &out, nil
}

func (m *memCodeRepo) FindByValue(ctx context.Context, value string) (*model.PromoCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byValue[value]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) Validate(ctx context.Context, value string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byValue[value]
	if !ok {
		return false, nil
	}
	return c.Used < c.UsageLimit, nil
}
