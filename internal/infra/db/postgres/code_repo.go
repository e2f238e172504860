package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
)

var _ repository.CodeRepository = (*PostgresCodeRepo)(nil)

type PostgresCodeRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCodeRepo(pool *pgxpool.Pool) *PostgresCodeRepo {
	return &PostgresCodeRepo{pool: pool}
}

func (r *PostgresCodeRepo) Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error) {
	const q = `INSERT INTO codes (value, usage_limit, used, tarif_id) VALUES ($1,$2,0,$3) RETURNING id;`

	if err := r.pool.QueryRow(ctx, q, code.Value, code.UsageLimit, code.TarifID).Scan(&code.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert code: %w", err)
	}
	return code, nil
}

func (r *PostgresCodeRepo) FindByValue(ctx context.Context, value string) (*model.PromoCode, error) {
	const q = `SELECT id, value, usage_limit, used, tarif_id FROM codes WHERE value = $1;`

	var c model.PromoCode
	err := r.pool.QueryRow(ctx, q, value).Scan(&c.ID, &c.Value, &c.UsageLimit, &c.Used, &c.TarifID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	return &c, nil
}

func (r *PostgresCodeRepo) Validate(ctx context.Context, value string) (bool, error) {
	if value == model.WelcomeCode {
		return true, nil
	}
	c, err := r.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return c.Used < c.UsageLimit, nil
}
