package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
)

var _ repository.MessageRepository = (*PostgresMessageRepo)(nil)

// PostgresMessageRepo stores conversation turns. Message IDs follow the
// serial column, so the minimum ID is always the oldest turn.
type PostgresMessageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepo(pool *pgxpool.Pool) *PostgresMessageRepo {
	return &PostgresMessageRepo{pool: pool}
}

func (r *PostgresMessageRepo) Create(ctx context.Context, contextID int64, role model.Role, content string) (*model.Message, error) {
	const q = `
INSERT INTO messages (context_id, role, content, created_at)
VALUES ($1,$2,$3,now()) RETURNING id, created_at;`

	m := &model.Message{ContextID: contextID, Role: role, Content: content}
	if err := r.pool.QueryRow(ctx, q, contextID, role, content).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (r *PostgresMessageRepo) ListByContext(ctx context.Context, contextID int64) ([]*model.Message, error) {
	const q = `
SELECT id, context_id, role, content, created_at
  FROM messages WHERE context_id = $1 ORDER BY id;`

	rows, err := r.pool.Query(ctx, q, contextID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ContextID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepo) CountByContext(ctx context.Context, contextID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM messages WHERE context_id = $1;`, contextID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (r *PostgresMessageRepo) PruneOldest(ctx context.Context, contextID int64) error {
	const q = `
DELETE FROM messages
 WHERE id = (SELECT min(id) FROM messages WHERE context_id = $1);`

	if _, err := r.pool.Exec(ctx, q, contextID); err != nil {
		return fmt.Errorf("prune message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepo) ClearByChat(ctx context.Context, chatID int64) error {
	const q = `
DELETE FROM messages
 WHERE context_id IN (
       SELECT c.id FROM account_contexts c
         JOIN accounts a ON a.id = c.account_id
        WHERE a.chat_id = $1);`

	if _, err := r.pool.Exec(ctx, q, chatID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}
