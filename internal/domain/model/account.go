package model

import (
	"time"

	"telegram-gpt-bot/internal/domain"
)

type Language string

const (
	LanguageRU Language = "ru"
	LanguageEN Language = "en"
)

// RandomModel selects which sampling knob shapes model requests.
type RandomModel string

const (
	RandomModelTemperature RandomModel = "temperature"
	RandomModelTopP        RandomModel = "topP"
	RandomModelBoth        RandomModel = "both"
)

// Settings is the per-account preference projection.
type Settings struct {
	Language    Language
	RandomModel RandomModel
	Temperature float64
	TopP        float64
}

// ContextSettings controls conversational memory for one account.
type ContextSettings struct {
	ID             int64
	Enabled        bool
	Length         int
	UseServiceInfo bool
	ServiceInfo    string
}

// Activity tracks tariff binding and metered usage for one account.
// UpdatedAt carries the last-activity timestamp used for the daily rollover.
type Activity struct {
	TarifID    int64
	Tarif      *Tarif
	Usage      int
	DailyUsage int
	ExpiresAt  time.Time
	UpdatedAt  time.Time
}

// Account is the persisted projection of one registered chat: user row plus
// its settings, context and activity satellites.
type Account struct {
	ID           int64
	ChatID       int64
	Name         string
	IsAdmin      bool
	Token        string
	Settings     Settings
	Context      ContextSettings
	Activity     Activity
	RegisteredAt time.Time
}

func (a *Account) IsZero() bool { return a == nil || a.ID == 0 }

// RegistrationInfo is what the registration wizard hands to persistence to
// materialize a new account.
type RegistrationInfo struct {
	Name     string
	Code     string
	Language Language
}

func (r RegistrationInfo) Validate() error {
	if r.Name == "" || r.Code == "" {
		return domain.ErrInvalidArgument
	}
	return nil
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one stored conversation turn. IDs are assigned by persistence in
// insertion order; the context window prunes the minimum ID first.
type Message struct {
	ID        int64
	ContextID int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// PromoCode is a redeemable code binding an account to a tariff.
type PromoCode struct {
	ID         int64
	Value      string
	UsageLimit int
	Used       int
	TarifID    int64
}

// WelcomeCode is the sentinel promo value that denotes the free tier during
// registration.
const WelcomeCode = "welcome"
