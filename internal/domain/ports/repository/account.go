package repository

import (
	"context"

	"telegram-gpt-bot/internal/domain/model"
)

// AccountRepository owns the durable account projection: the user row and its
// settings, context and activity satellites.
type AccountRepository interface {
	// FindByChatID returns the full account projection or domain.ErrNotFound.
	FindByChatID(ctx context.Context, chatID int64) (*model.Account, error)

	// Create materializes a registered account from the registration draft:
	// user, token, context, settings and activity rows in one transaction.
	Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error)

	ChangeName(ctx context.Context, accountID int64, name string) error
	ChangeLanguage(ctx context.Context, accountID int64, lang model.Language) error
	ChangeContextLength(ctx context.Context, accountID int64, length int) error
	ChangeServiceInfo(ctx context.Context, accountID int64, info string) error
	ChangeRandomModel(ctx context.Context, accountID int64, rm model.RandomModel, temperature, topP float64) error
	ToggleContext(ctx context.Context, accountID int64, enabled bool) error
	ToggleServiceInfo(ctx context.Context, accountID int64, enabled bool) error

	// ActivateCode rebinds the account's activity to the tariff behind the
	// given promo code value. Returns domain.ErrInvalidCode for unknown codes.
	ActivateCode(ctx context.Context, accountID int64, codeValue string) error

	// UpdateUsage increments both usage counters by delta and stamps the
	// activity's last-activity time.
	UpdateUsage(ctx context.Context, accountID int64, delta int) error

	// ResetDailyUsage zeroes the daily counter (calendar-day rollover).
	ResetDailyUsage(ctx context.Context, accountID int64) error
}
