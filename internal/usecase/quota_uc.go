package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
	"telegram-gpt-bot/internal/infra/metrics"
	"telegram-gpt-bot/internal/session"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// Access is the verdict of one quota check. Allowed is the conjunction of
// the three individual checks.
type Access struct {
	Allowed    bool
	TarifValid bool
	DailyOk    bool
	TotalOk    bool
}

// QuotaUseCase gates model access by tariff validity and usage budgets.
type QuotaUseCase interface {
	// ValidateAccess rolls the daily counter over on a calendar-day change,
	// then evaluates the account's tariff window and both usage budgets.
	// Admin accounts and unlimited tariffs pass without any check or write.
	ValidateAccess(ctx context.Context, acc *model.Account) (Access, error)
}

type quotaUC struct {
	accounts repository.AccountRepository
	store    *session.Store
	now      func() time.Time
	log      *zerolog.Logger
}

type QuotaOption func(*quotaUC)

// WithQuotaClock swaps the wall clock, used by tests to pin the day boundary.
func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(u *quotaUC) { u.now = now }
}

func NewQuotaUseCase(accounts repository.AccountRepository, store *session.Store, logger *zerolog.Logger, opts ...QuotaOption) *quotaUC {
	l := logger.With().Str("component", "quota-usecase").Logger()
	u := &quotaUC{accounts: accounts, store: store, now: time.Now, log: &l}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *quotaUC) ValidateAccess(ctx context.Context, acc *model.Account) (Access, error) {
	tarif := acc.Activity.Tarif
	if acc.IsAdmin || (tarif != nil && tarif.Unlimited) {
		return Access{Allowed: true, TarifValid: true, DailyOk: true, TotalOk: true}, nil
	}
	if tarif == nil {
		return Access{}, fmt.Errorf("account %d has no tariff bound", acc.ID)
	}

	now := u.now()
	if !sameDay(acc.Activity.UpdatedAt, now) && acc.Activity.DailyUsage > 0 {
		if err := u.accounts.ResetDailyUsage(ctx, acc.ID); err != nil {
			return Access{}, fmt.Errorf("reset daily usage: %w", err)
		}
		acc.Activity.DailyUsage = 0
		u.store.Account().Delete(acc.ChatID)
		metrics.IncQuotaRollover()
		u.log.Debug().Int64("account_id", acc.ID).Msg("daily usage rolled over")
	}

	a := Access{
		TarifValid: !now.After(acc.Activity.ExpiresAt),
		DailyOk:    acc.Activity.DailyUsage <= tarif.DailyLimit,
		TotalOk:    acc.Activity.Usage <= tarif.TotalLimit,
	}
	a.Allowed = a.TarifValid && a.DailyOk && a.TotalOk
	return a, nil
}

// sameDay compares calendar days in the local zone.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
