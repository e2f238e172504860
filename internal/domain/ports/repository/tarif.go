package repository

import (
	"context"

	"telegram-gpt-bot/internal/domain/model"
)

// TarifRepository owns tariffs and their price lists.
type TarifRepository interface {
	Create(ctx context.Context, tarif *model.Tarif) (*model.Tarif, error)
	CreatePrice(ctx context.Context, price *model.Price) (*model.Price, error)
	FindByID(ctx context.Context, id int64) (*model.Tarif, error)
	ListAll(ctx context.Context) ([]*model.Tarif, error)
	ListPrices(ctx context.Context, tarifID int64) ([]*model.Price, error)
}

// CodeRepository owns redeemable promo codes.
type CodeRepository interface {
	Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error)
	FindByValue(ctx context.Context, value string) (*model.PromoCode, error)

	// Validate reports whether the value names a known, non-exhausted code.
	Validate(ctx context.Context, value string) (bool, error)
}
