package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Stats is the aggregate snapshot served by the admin API.
type Stats struct {
	TotalAccounts  int            `json:"total_accounts"`
	ActiveByTarif  map[string]int `json:"active_by_tarif"`
	TokensUsed     int64          `json:"tokens_used"`
	StoredMessages int            `json:"stored_messages"`
}

type PostgresStatsRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresStatsRepo(pool *pgxpool.Pool) *PostgresStatsRepo {
	return &PostgresStatsRepo{pool: pool}
}

func (r *PostgresStatsRepo) Totals(ctx context.Context) (*Stats, error) {
	s := &Stats{ActiveByTarif: map[string]int{}}

	err := r.pool.QueryRow(ctx, `
SELECT (SELECT count(*) FROM accounts),
       (SELECT coalesce(sum(usage), 0) FROM account_activity),
       (SELECT count(*) FROM messages);`).
		Scan(&s.TotalAccounts, &s.TokensUsed, &s.StoredMessages)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
SELECT t.name, count(*)
  FROM account_activity v
  JOIN tarifs t ON t.id = v.tarif_id
 WHERE v.expires_at > now()
 GROUP BY t.name;`)
	if err != nil {
		return nil, fmt.Errorf("stats by tarif: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		s.ActiveByTarif[name] = n
	}
	return s, rows.Err()
}
