package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
)

var _ repository.TarifRepository = (*PostgresTarifRepo)(nil)

type PostgresTarifRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTarifRepo(pool *pgxpool.Pool) *PostgresTarifRepo {
	return &PostgresTarifRepo{pool: pool}
}

// Durations are stored as whole seconds.
const selectTarifQuery = `
SELECT id, name, title, description, image_url,
       total_limit, daily_limit, max_context, duration_seconds, type, unlimited, created_at
  FROM tarifs`

func scanTarifRow(row pgx.Row) (*model.Tarif, error) {
	var t model.Tarif
	var durationSeconds int64
	err := row.Scan(
		&t.ID, &t.Name, &t.Title, &t.Description, &t.ImageURL,
		&t.TotalLimit, &t.DailyLimit, &t.MaxContext, &durationSeconds, &t.Type, &t.Unlimited, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan tarif: %w", err)
	}
	t.Duration = time.Duration(durationSeconds) * time.Second
	return &t, nil
}

func (r *PostgresTarifRepo) Create(ctx context.Context, tarif *model.Tarif) (*model.Tarif, error) {
	const q = `
INSERT INTO tarifs (name, title, description, image_url,
                    total_limit, daily_limit, max_context, duration_seconds, type, unlimited, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id;`

	err := r.pool.QueryRow(ctx, q,
		tarif.Name, tarif.Title, tarif.Description, tarif.ImageURL,
		tarif.TotalLimit, tarif.DailyLimit, tarif.MaxContext,
		int64(tarif.Duration/time.Second), tarif.Type, tarif.Unlimited, tarif.CreatedAt,
	).Scan(&tarif.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert tarif: %w", err)
	}
	return tarif, nil
}

func (r *PostgresTarifRepo) CreatePrice(ctx context.Context, price *model.Price) (*model.Price, error) {
	const q = `INSERT INTO prices (tarif_id, value, currency) VALUES ($1,$2,$3) RETURNING id;`

	if err := r.pool.QueryRow(ctx, q, price.TarifID, price.Value, price.Currency).Scan(&price.ID); err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	return price, nil
}

func (r *PostgresTarifRepo) FindByID(ctx context.Context, id int64) (*model.Tarif, error) {
	return scanTarifRow(r.pool.QueryRow(ctx, selectTarifQuery+` WHERE id = $1;`, id))
}

func (r *PostgresTarifRepo) ListAll(ctx context.Context) ([]*model.Tarif, error) {
	rows, err := r.pool.Query(ctx, selectTarifQuery+` ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("list tarifs: %w", err)
	}
	defer rows.Close()

	var out []*model.Tarif
	for rows.Next() {
		t, err := scanTarifRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresTarifRepo) ListPrices(ctx context.Context, tarifID int64) ([]*model.Price, error) {
	const q = `SELECT id, tarif_id, value, currency FROM prices WHERE tarif_id = $1 ORDER BY id;`

	rows, err := r.pool.Query(ctx, q, tarifID)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var out []*model.Price
	for rows.Next() {
		var p model.Price
		if err := rows.Scan(&p.ID, &p.TarifID, &p.Value, &p.Currency); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
