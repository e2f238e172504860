package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-gpt-bot/internal/domain"
	"telegram-gpt-bot/internal/domain/model"
	"telegram-gpt-bot/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

// PostgresAccountRepo persists the account projection across the accounts,
// account_settings, account_contexts and account_activity tables.
type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const findAccountQuery = `
SELECT a.id, a.chat_id, a.name, a.is_admin, a.token, a.registered_at,
       s.language, s.random_model, s.temperature, s.top_p,
       c.id, c.enabled, c.length, c.use_service_info, c.service_info,
       v.tarif_id, v.usage, v.daily_usage, v.expires_at, v.updated_at,
       t.id, t.name, t.title, t.description, t.image_url,
       t.total_limit, t.daily_limit, t.max_context, t.duration_seconds, t.type, t.unlimited, t.created_at
  FROM accounts a
  JOIN account_settings s ON s.account_id = a.id
  JOIN account_contexts c ON c.account_id = a.id
  JOIN account_activity v ON v.account_id = a.id
  JOIN tarifs t ON t.id = v.tarif_id
 WHERE a.chat_id = $1;
`

func (r *PostgresAccountRepo) FindByChatID(ctx context.Context, chatID int64) (*model.Account, error) {
	row := r.pool.QueryRow(ctx, findAccountQuery, chatID)

	var a model.Account
	var t model.Tarif
	var durationSeconds int64
	err := row.Scan(
		&a.ID, &a.ChatID, &a.Name, &a.IsAdmin, &a.Token, &a.RegisteredAt,
		&a.Settings.Language, &a.Settings.RandomModel, &a.Settings.Temperature, &a.Settings.TopP,
		&a.Context.ID, &a.Context.Enabled, &a.Context.Length, &a.Context.UseServiceInfo, &a.Context.ServiceInfo,
		&a.Activity.TarifID, &a.Activity.Usage, &a.Activity.DailyUsage, &a.Activity.ExpiresAt, &a.Activity.UpdatedAt,
		&t.ID, &t.Name, &t.Title, &t.Description, &t.ImageURL,
		&t.TotalLimit, &t.DailyLimit, &t.MaxContext, &durationSeconds, &t.Type, &t.Unlimited, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	t.Duration = time.Duration(durationSeconds) * time.Second
	a.Activity.Tarif = &t
	return &a, nil
}

// Create materializes the registered account in one transaction: the user
// row, its satellites, and the promo code redemption.
func (r *PostgresAccountRepo) Create(ctx context.Context, chatID int64, info model.RegistrationInfo) (*model.Account, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tarif, err := resolveCodeTarif(ctx, tx, info.Code)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	now := time.Now()

	var accountID int64
	err = tx.QueryRow(ctx, `
INSERT INTO accounts (chat_id, name, is_admin, token, registered_at)
VALUES ($1,$2,false,$3,$4) RETURNING id;`,
		chatID, info.Name, token, now).Scan(&accountID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO account_settings (account_id, language, random_model, temperature, top_p)
VALUES ($1,$2,$3,1,1);`,
		accountID, info.Language, model.RandomModelTemperature)
	if err != nil {
		return nil, fmt.Errorf("insert settings: %w", err)
	}

	var contextID int64
	err = tx.QueryRow(ctx, `
INSERT INTO account_contexts (account_id, enabled, length, use_service_info, service_info)
VALUES ($1,true,$2,false,'') RETURNING id;`,
		accountID, tarif.MaxContext).Scan(&contextID)
	if err != nil {
		return nil, fmt.Errorf("insert context: %w", err)
	}

	expiresAt := now.Add(tarif.Duration)
	_, err = tx.Exec(ctx, `
INSERT INTO account_activity (account_id, tarif_id, usage, daily_usage, expires_at, updated_at)
VALUES ($1,$2,0,0,$3,$4);`,
		accountID, tarif.ID, expiresAt, now)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}

	if info.Code != model.WelcomeCode {
		if _, err := tx.Exec(ctx, `UPDATE codes SET used = used + 1 WHERE value = $1;`, info.Code); err != nil {
			return nil, fmt.Errorf("redeem code: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &model.Account{
		ID:     accountID,
		ChatID: chatID,
		Name:   info.Name,
		Token:  token,
		Settings: model.Settings{
			Language:    info.Language,
			RandomModel: model.RandomModelTemperature,
			Temperature: 1,
			TopP:        1,
		},
		Context: model.ContextSettings{ID: contextID, Enabled: true, Length: tarif.MaxContext},
		Activity: model.Activity{
			TarifID:   tarif.ID,
			Tarif:     tarif,
			ExpiresAt: expiresAt,
			UpdatedAt: now,
		},
		RegisteredAt: now,
	}, nil
}

// resolveCodeTarif maps the registration code to its tariff. The welcome
// sentinel resolves to the tariff named "welcome"; any other code must be a
// known, non-exhausted promo code.
func resolveCodeTarif(ctx context.Context, tx pgx.Tx, code string) (*model.Tarif, error) {
	if code == model.WelcomeCode {
		return scanTarifRow(tx.QueryRow(ctx, selectTarifQuery+` WHERE name = $1;`, model.WelcomeCode))
	}

	var tarifID int64
	var usageLimit, used int
	err := tx.QueryRow(ctx, `SELECT tarif_id, usage_limit, used FROM codes WHERE value = $1 FOR UPDATE;`, code).
		Scan(&tarifID, &usageLimit, &used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInvalidCode
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	if used >= usageLimit {
		return nil, domain.ErrCodeExhausted
	}
	return scanTarifRow(tx.QueryRow(ctx, selectTarifQuery+` WHERE id = $1;`, tarifID))
}

func (r *PostgresAccountRepo) ChangeName(ctx context.Context, accountID int64, name string) error {
	return r.exec(ctx, `UPDATE accounts SET name = $2 WHERE id = $1;`, accountID, name)
}

func (r *PostgresAccountRepo) ChangeLanguage(ctx context.Context, accountID int64, lang model.Language) error {
	return r.exec(ctx, `UPDATE account_settings SET language = $2 WHERE account_id = $1;`, accountID, lang)
}

func (r *PostgresAccountRepo) ChangeContextLength(ctx context.Context, accountID int64, length int) error {
	return r.exec(ctx, `UPDATE account_contexts SET length = $2 WHERE account_id = $1;`, accountID, length)
}

func (r *PostgresAccountRepo) ChangeServiceInfo(ctx context.Context, accountID int64, info string) error {
	return r.exec(ctx, `UPDATE account_contexts SET service_info = $2 WHERE account_id = $1;`, accountID, info)
}

func (r *PostgresAccountRepo) ChangeRandomModel(ctx context.Context, accountID int64, rm model.RandomModel, temperature, topP float64) error {
	return r.exec(ctx, `UPDATE account_settings SET random_model = $2, temperature = $3, top_p = $4 WHERE account_id = $1;`,
		accountID, rm, temperature, topP)
}

func (r *PostgresAccountRepo) ToggleContext(ctx context.Context, accountID int64, enabled bool) error {
	return r.exec(ctx, `UPDATE account_contexts SET enabled = $2 WHERE account_id = $1;`, accountID, enabled)
}

func (r *PostgresAccountRepo) ToggleServiceInfo(ctx context.Context, accountID int64, enabled bool) error {
	return r.exec(ctx, `UPDATE account_contexts SET use_service_info = $2 WHERE account_id = $1;`, accountID, enabled)
}

// ActivateCode rebinds the account's activity to the code's tariff, resetting
// both usage counters and the expiry window.
func (r *PostgresAccountRepo) ActivateCode(ctx context.Context, accountID int64, codeValue string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tarif, err := resolveCodeTarif(ctx, tx, codeValue)
	if err != nil {
		return err
	}

	now := time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE account_activity
   SET tarif_id = $2, usage = 0, daily_usage = 0, expires_at = $3, updated_at = $4
 WHERE account_id = $1;`,
		accountID, tarif.ID, now.Add(tarif.Duration), now)
	if err != nil {
		return fmt.Errorf("rebind activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if codeValue != model.WelcomeCode {
		if _, err := tx.Exec(ctx, `UPDATE codes SET used = used + 1 WHERE value = $1;`, codeValue); err != nil {
			return fmt.Errorf("redeem code: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresAccountRepo) UpdateUsage(ctx context.Context, accountID int64, delta int) error {
	return r.exec(ctx, `
UPDATE account_activity
   SET usage = usage + $2, daily_usage = daily_usage + $2, updated_at = now()
 WHERE account_id = $1;`, accountID, delta)
}

func (r *PostgresAccountRepo) ResetDailyUsage(ctx context.Context, accountID int64) error {
	return r.exec(ctx, `UPDATE account_activity SET daily_usage = 0 WHERE account_id = $1;`, accountID)
}

func (r *PostgresAccountRepo) exec(ctx context.Context, query string, args ...interface{}) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
