package session

import (
	"sync"
	"time"
)

// Table is one shard of the store: all records of a single kind, keyed by
// chat id. Every mutation goes through the table so updatedAt stamping stays
// in one place. Each table carries its own mutex, so a sweep scanning one
// kind never blocks operations on another.
type Table[T any] struct {
	mu    sync.Mutex
	items map[int64]*entry[T]
	now   func() time.Time
}

type entry[T any] struct {
	rec       *T
	updatedAt time.Time
}

func newTable[T any](now func() time.Time) *Table[T] {
	return &Table[T]{items: make(map[int64]*entry[T]), now: now}
}

// GetOrCreate returns the existing record or creates one via factory,
// stamping updatedAt with the current time on creation.
func (t *Table[T]) GetOrCreate(chatID int64, factory func() *T) *T {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.items[chatID]; ok {
		return e.rec
	}
	e := &entry[T]{rec: factory(), updatedAt: t.now()}
	t.items[chatID] = e
	return e.rec
}

// Get is a pure lookup; it never creates.
func (t *Table[T]) Get(chatID int64) (*T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[chatID]
	if !ok {
		return nil, false
	}
	return e.rec, true
}

// Update applies fn to the record if present and bumps updatedAt. Reports
// whether the record existed.
func (t *Table[T]) Update(chatID int64, fn func(*T)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[chatID]
	if !ok {
		return false
	}
	fn(e.rec)
	e.updatedAt = t.now()
	return true
}

// Touch bumps updatedAt without mutating the record.
func (t *Table[T]) Touch(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.items[chatID]; ok {
		e.updatedAt = t.now()
	}
}

// Delete is idempotent removal.
func (t *Table[T]) Delete(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, chatID)
}

// Len reports the number of live records (sweep metric).
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

func (t *Table[T]) sweep(ttl time.Duration, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for id, e := range t.items {
		if now.Sub(e.updatedAt) > ttl {
			delete(t.items, id)
			removed++
		}
	}
	return removed
}

// Store holds every ephemeral per-chat record: wizard drafts, settings flags
// and the cached account snapshot. One record of each kind may exist per chat
// at a time. Records untouched longer than the TTL are evicted by Sweep.
type Store struct {
	ttl time.Duration
	now func() time.Time

	reg      *Table[RegistrationDraft]
	tarif    *Table[TarifDraft]
	prices   *Table[PriceDraftList]
	code     *Table[CodeDraft]
	settings *Table[SettingsFlags]
	contexts *Table[ContextFlags]
	accounts *Table[AccountSnapshot]

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects a clock; tests use it to drive TTL eviction.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	s := &Store{ttl: ttl, now: time.Now, locks: make(map[int64]*sync.Mutex)}
	for _, opt := range opts {
		opt(s)
	}
	s.reg = newTable[RegistrationDraft](s.now)
	s.tarif = newTable[TarifDraft](s.now)
	s.prices = newTable[PriceDraftList](s.now)
	s.code = newTable[CodeDraft](s.now)
	s.settings = newTable[SettingsFlags](s.now)
	s.contexts = newTable[ContextFlags](s.now)
	s.accounts = newTable[AccountSnapshot](s.now)
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) Registration() *Table[RegistrationDraft] { return s.reg }
func (s *Store) Tarif() *Table[TarifDraft]               { return s.tarif }
func (s *Store) Prices() *Table[PriceDraftList]          { return s.prices }
func (s *Store) Code() *Table[CodeDraft]                 { return s.code }
func (s *Store) Settings() *Table[SettingsFlags]         { return s.settings }
func (s *Store) Context() *Table[ContextFlags]           { return s.contexts }
func (s *Store) Account() *Table[AccountSnapshot]        { return s.accounts }

// Lock serializes engine operations for one chat id. Overlapping updates for
// the same chat would otherwise race on draft state across await points.
// The returned func releases the lock.
func (s *Store) Lock(chatID int64) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[chatID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[chatID] = mu
	}
	s.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// DeleteAllForChat removes every kind's record for the chat. Used when the
// chat abandons any in-flight wizard, e.g. switching into chat mode.
func (s *Store) DeleteAllForChat(chatID int64) {
	s.reg.Delete(chatID)
	s.tarif.Delete(chatID)
	s.prices.Delete(chatID)
	s.code.Delete(chatID)
	s.settings.Delete(chatID)
	s.contexts.Delete(chatID)
	s.accounts.Delete(chatID)
}

// Sweep evicts every record older than the TTL and returns how many were
// removed. Eviction silently discards in-progress wizards; that is accepted
// data loss, not a failure. Tables are scanned one at a time so concurrent
// operations block for at most one shard scan.
func (s *Store) Sweep() int {
	now := s.now()
	removed := 0
	removed += s.reg.sweep(s.ttl, now)
	removed += s.tarif.sweep(s.ttl, now)
	removed += s.prices.sweep(s.ttl, now)
	removed += s.code.sweep(s.ttl, now)
	removed += s.settings.sweep(s.ttl, now)
	removed += s.contexts.sweep(s.ttl, now)
	removed += s.accounts.sweep(s.ttl, now)
	return removed
}

// Size reports the total number of live records across all kinds.
func (s *Store) Size() int {
	return s.reg.Len() + s.tarif.Len() + s.prices.Len() + s.code.Len() +
		s.settings.Len() + s.contexts.Len() + s.accounts.Len()
}
