package model

import (
	"time"

	"telegram-gpt-bot/internal/domain"
)

type TarifType string

const (
	TarifTypeLimit     TarifType = "limit"
	TarifTypeSubscribe TarifType = "subscribe"
)

type Currency string

const (
	CurrencyRUB  Currency = "rub"
	CurrencyUSD  Currency = "usd"
	CurrencyBTC  Currency = "btc"
	CurrencyETH  Currency = "eth"
	CurrencyUSDT Currency = "usdt"
)

// Currencies lists every currency the tariff wizard offers, in button order.
var Currencies = []Currency{CurrencyRUB, CurrencyUSD, CurrencyBTC, CurrencyETH, CurrencyUSDT}

// Duration presets offered by the tariff wizard duration step.
const (
	DurationDay   = 24 * time.Hour
	DurationMonth = 30 * 24 * time.Hour
	DurationYear  = 365 * 24 * time.Hour
)

// Tarif is a persisted subscription plan gating model access.
// TotalLimit and DailyLimit are token budgets; MaxContext bounds the stored
// conversation history for accounts on this tariff.
type Tarif struct {
	ID          int64
	Name        string
	Title       string
	Description string
	ImageURL    string
	TotalLimit  int
	DailyLimit  int
	MaxContext  int
	Duration    time.Duration
	Type        TarifType
	Unlimited   bool
	CreatedAt   time.Time
}

func (t *Tarif) IsZero() bool { return t == nil || t.ID == 0 }

// NewTarif validates and constructs a tariff.
func NewTarif(name, title, description, imageURL string, totalLimit, dailyLimit, maxContext int, duration time.Duration, typ TarifType) (*Tarif, error) {
	if name == "" || totalLimit < 0 || dailyLimit < 0 || maxContext <= 0 || duration <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Tarif{
		Name:        name,
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		TotalLimit:  totalLimit,
		DailyLimit:  dailyLimit,
		MaxContext:  maxContext,
		Duration:    duration,
		Type:        typ,
		CreatedAt:   time.Now(),
	}, nil
}

// Price is one currency/value pair attached to a tariff. A tariff may carry
// several prices, one per currency.
type Price struct {
	ID       int64
	TarifID  int64
	Value    int
	Currency Currency
}
