package session

import (
	"time"

	"telegram-gpt-bot/internal/domain/model"
)

// RegState enumerates the registration wizard states. Values are ordinal so
// one valid input advances the state by exactly one.
type RegState int

const (
	RegAwaitingLanguage RegState = iota + 1
	RegAwaitingName
	RegAwaitingPromo
	RegAwaitingConfirm
	RegDone
)

// RegistrationDraft is the in-progress registration collected by the wizard.
type RegistrationDraft struct {
	Name     string
	Code     string
	Language model.Language
	State    RegState
}

func NewRegistrationDraft(name string) *RegistrationDraft {
	return &RegistrationDraft{
		Name:     name,
		Language: model.LanguageRU,
		State:    RegAwaitingLanguage,
	}
}

// TarifState enumerates the tariff wizard states.
type TarifState int

const (
	TarifAwaitingName TarifState = iota + 1
	TarifAwaitingTitle
	TarifAwaitingDescription
	TarifAwaitingImage
	TarifAwaitingTotalLimit
	TarifAwaitingDailyLimit
	TarifAwaitingMaxContext
	TarifAwaitingDuration
	TarifAwaitingType
	TarifAwaitingCurrency
	TarifAwaitingPrice
	TarifAwaitingDecision
	TarifDone
)

// NumericInput reports whether the state consumes a free-text integer.
func (s TarifState) NumericInput() bool {
	return (s >= TarifAwaitingTotalLimit && s <= TarifAwaitingDuration) || s == TarifAwaitingPrice
}

// ButtonOnly reports whether the state accepts button input exclusively.
func (s TarifState) ButtonOnly() bool {
	return s == TarifAwaitingType || s == TarifAwaitingCurrency || s == TarifAwaitingDecision
}

// TarifDraft is the in-progress tariff collected by the admin wizard.
type TarifDraft struct {
	Name        string
	Title       string
	Description string
	ImageURL    string
	TotalLimit  int
	DailyLimit  int
	MaxContext  int
	Duration    time.Duration
	Type        model.TarifType
	Currency    model.Currency
	State       TarifState
}

func NewTarifDraft() *TarifDraft {
	return &TarifDraft{
		MaxContext: 10,
		Type:       model.TarifTypeLimit,
		State:      TarifAwaitingName,
	}
}

// PriceDraft is one collected currency/value pair.
type PriceDraft struct {
	Value    int
	Currency model.Currency
}

// PriceDraftList accumulates one entry per currency chosen; the price step
// always mutates the last entry.
type PriceDraftList struct {
	Prices []PriceDraft
}

func NewPriceDraftList() *PriceDraftList { return &PriceDraftList{} }

func (l *PriceDraftList) Append(c model.Currency) {
	l.Prices = append(l.Prices, PriceDraft{Currency: c})
}

// SetLastValue mutates the most recently appended entry. False when no
// currency was chosen yet.
func (l *PriceDraftList) SetLastValue(v int) bool {
	if len(l.Prices) == 0 {
		return false
	}
	l.Prices[len(l.Prices)-1].Value = v
	return true
}

// CodeState enumerates the promo-code wizard states.
type CodeState int

const (
	CodeAwaitingValue CodeState = iota + 1
	CodeAwaitingLimit
	CodeAwaitingTarif
	CodeAwaitingConfirm
	CodeDone
)

// CodeDraft is the in-progress promo code collected by the admin wizard.
type CodeDraft struct {
	Value      string
	UsageLimit int
	TarifName  string
	TarifID    int64
	State      CodeState
}

func NewCodeDraft() *CodeDraft {
	return &CodeDraft{UsageLimit: 1, State: CodeAwaitingValue}
}

// SettingsFlags marks which settings input the chat's next free-text message
// answers. At most one flag should be set; precedence is name, then promo.
type SettingsFlags struct {
	AwaitingName  bool
	AwaitingPromo bool
	Random        RandomDraft
}

// RandomDraft tracks the two-step temperature+topP sub-flow of the sampling
// settings ("both" asks for two values in a row).
type RandomDraft struct {
	Model       model.RandomModel
	Step        int
	Temperature float64
	TopP        float64
}

func NewSettingsFlags() *SettingsFlags {
	return &SettingsFlags{Random: RandomDraft{Step: 1}}
}

// ContextFlags mirrors the context-editing subset: which input is awaited and
// the service-info toggle staged during editing.
type ContextFlags struct {
	AwaitingLength      bool
	AwaitingServiceInfo bool
	UseServiceInfo      bool
}

func NewContextFlags() *ContextFlags { return &ContextFlags{} }

// AccountSnapshot is the read-through cached account projection. Invalidated
// after any persistence write that changes it.
type AccountSnapshot struct {
	Account *model.Account
	Exists  bool
}
