package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/agenda-api/internal/database"
)

// BunAPIKeyRepository stores API keys in Postgres.
type BunAPIKeyRepository struct {
	db *bun.DB
}

func NewBunAPIKeyRepository(db *bun.DB) *BunAPIKeyRepository {
	return &BunAPIKeyRepository{db: db}
}

func (r *BunAPIKeyRepository) GetByKey(ctx context.Context, key string) (*APIKey, error) {
	return r.getBy(ctx, "key = ?", key)
}

func (r *BunAPIKeyRepository) GetByEmail(ctx context.Context, email string) (*APIKey, error) {
	return r.getBy(ctx, "email = ?", email)
}

func (r *BunAPIKeyRepository) getBy(ctx context.Context, where string, arg any) (*APIKey, error) {
	dbKey := new(database.APIKey)
	err := r.db.NewSelect().
		Model(dbKey).
		Where(where, arg).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}

	return mapDBAPIKeyToModel(dbKey), nil
}

// Upsert replaces the key of an existing email in place.
func (r *BunAPIKeyRepository) Upsert(ctx context.Context, k *APIKey) error {
	dbKey := &database.APIKey{
		ID:        k.ID,
		Key:       k.Key,
		Email:     k.Email,
		ValidFrom: k.ValidFrom,
		ExpiresAt: k.ExpiresAt,
		CreatedAt: k.CreatedAt,
	}

	_, err := r.db.NewInsert().
		Model(dbKey).
		On("CONFLICT (email) DO UPDATE").
		Set("key = EXCLUDED.key").
		Set("valid_from = EXCLUDED.valid_from").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert api key: %w", err)
	}

	return nil
}

func mapDBAPIKeyToModel(dbk *database.APIKey) *APIKey {
	return &APIKey{
		ID:        dbk.ID,
		Key:       dbk.Key,
		Email:     dbk.Email,
		ValidFrom: dbk.ValidFrom,
		ExpiresAt: dbk.ExpiresAt,
		CreatedAt: dbk.CreatedAt,
	}
}

// BunLedger keeps killed tokens in Postgres.
type BunLedger struct {
	db  *bun.DB
	now func() time.Time
}

func NewBunLedger(db *bun.DB) *BunLedger {
	return &BunLedger{db: db, now: time.Now}
}

func (l *BunLedger) Kill(ctx context.Context, token string) error {
	_, err := l.db.NewInsert().
		Model(&database.KilledToken{Token: token, CreatedAt: l.now()}).
		On("CONFLICT (token) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to kill token: %w", err)
	}
	return nil
}

func (l *BunLedger) IsKilled(ctx context.Context, token string) (bool, error) {
	exists, err := l.db.NewSelect().
		Model((*database.KilledToken)(nil)).
		Where("token = ?", token).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check killed token: %w", err)
	}
	return exists, nil
}

func (l *BunLedger) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := l.db.NewDelete().
		Model((*database.KilledToken)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete killed tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
