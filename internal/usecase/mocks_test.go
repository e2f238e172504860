package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memAccountRepo is a small in-memory AccountRepository used by unit tests.
type memAccountRepo struct {
	mu       sync.RWMutex
	byID     map[int64]*model.Account
	resetErr error
	resets   int
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byID: make(map[int64]*model.Account)}
}

func (m *memAccountRepo) seed(a *model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.ID] = &cp
}

func (m *memAccountRepo) get(id int64) *model.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.byID[id]
	return &cp
}

func (m *memAccountRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.byID {
		if a.ChatID == chatID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error) {
	return nil, domain.ErrAlreadyExists
}

func (m *memAccountRepo) update(id int64, fn func(*model.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(a)
	return nil
}

func (m *memAccountRepo) ChangeName(ctx context.Context, id int64, name string) error {
	return m.update(id, func(a *model.Account) { a.Name = name })
}

func (m *memAccountRepo) ChangeLanguage(ctx context.Context, id int64, lang model.Language) error {
	return m.update(id, func(a *model.Account) { a.Settings.Language = lang })
}

func (m *memAccountRepo) ChangeContextLength(ctx context.Context, id int64, length int) error {
	return m.update(id, func(a *model.Account) { a.Context.Length = length })
}

func (m *memAccountRepo) ChangeServiceInfo(ctx context.Context, id int64, info string) error {
	return m.update(id, func(a *model.Account) { a.Context.ServiceInfo = info })
}

func (m *memAccountRepo) ChangeRandomModel(ctx context.Context, id int64, rm model.RandomModel, temperature, topP float64) error {
	return m.update(id, func(a *model.Account) {
		a.Settings.RandomModel = rm
		a.Settings.Temperature = temperature
		a.Settings.TopP = topP
	})
}

func (m *memAccountRepo) ToggleContext(ctx context.Context, id int64, enabled bool) error {
	return m.update(id, func(a *model.Account) { a.Context.Enabled = enabled })
}

func (m *memAccountRepo) ToggleServiceInfo(ctx context.Context, id int64, enabled bool) error {
	return m.update(id, func(a *model.Account) { a.Context.UseServiceInfo = enabled })
}

func (m *memAccountRepo) ActivateCode(ctx context.Context, id int64, codeValue string) error {
	return m.update(id, func(a *model.Account) { a.Activity.TarifID++ })
}

func (m *memAccountRepo) UpdateUsage(ctx context.Context, id int64, delta int) error {
	return m.update(id, func(a *model.Account) {
		a.Activity.Usage += delta
		a.Activity.DailyUsage += delta
		a.Activity.UpdatedAt = time.Now()
	})
}

func (m *memAccountRepo) ResetDailyUsage(ctx context.Context, id int64) error {
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets++
	return m.update(id, func(a *model.Account) { a.Activity.DailyUsage = 0 })
}

// memMessageRepo is a small in-memory MessageRepository. For tests the chat
// id doubles as the context id.
type memMessageRepo struct {
	mu     sync.Mutex
	nextID int64
	byCtx  map[int64][]*model.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{nextID: 1, byCtx: make(map[int64][]*model.Message)}
}

func (m *memMessageRepo) Create(ctx context.Context, contextID int64, role model.Role, content string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := &model.Message{ID: m.nextID, ContextID: contextID, Role: role, Content: content, CreatedAt: time.Now()}
	m.nextID++
	m.byCtx[contextID] = append(m.byCtx[contextID], msg)
	return msg, nil
}

func (m *memMessageRepo) ListByContext(ctx context.Context, contextID int64) ([]*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.byCtx[contextID]
	out := make([]*model.Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memMessageRepo) CountByContext(ctx context.Context, contextID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCtx[contextID]), nil
}

func (m *memMessageRepo) PruneOldest(ctx context.Context, contextID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.byCtx[contextID]
	if len(msgs) == 0 {
		return nil
	}
	min := 0
	for i, msg := range msgs {
		if msg.ID < msgs[min].ID {
			min = i
		}
	}
	m.byCtx[contextID] = append(msgs[:min], msgs[min+1:]...)
	return nil
}

func (m *memMessageRepo) ClearByChat(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byCtx, chatID)
	return nil
}

// fakeModelClient replays canned completions and records prompts.
type fakeModelClient struct {
	mu      sync.Mutex
	reply   string
	tokens  int
	err     error
	prompts [][]adapter.Message
	params  []adapter.SamplingParams
}

func (f *fakeModelClient) Complete(ctx context.Context, model string, messages []adapter.Message, params adapter.SamplingParams) (*adapter.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.prompts = append(f.prompts, messages)
	f.params = append(f.params, params)
	return &adapter.Completion{Text: f.reply, TokensUsed: f.tokens}, nil
}

func (f *fakeModelClient) ListModels(ctx context.Context) ([]string, error) {
	return []string{"gpt-test"}, nil
}

// fakeEstimator charges a flat token count per message.
type fakeEstimator struct{ perMessage int }

func (f *fakeEstimator) Estimate(model string, messages []adapter.Message) (int, error) {
	return f.perMessage * len(messages), nil
}
