package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskhive/internal/database"
)

// ActionTokenRepository persists email verification and password reset
// tokens. Only hashes are stored; issuing a new token replaces any prior
// token for the same user and purpose.
type ActionTokenRepository struct {
	db *bun.DB
}

func NewActionTokenRepository(db *bun.DB) *ActionTokenRepository {
	return &ActionTokenRepository{db: db}
}

// Replace deletes any existing token for (user, purpose) and stores the new
// one, in one transaction.
func (r *ActionTokenRepository) Replace(ctx context.Context, token *ActionToken) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*database.ActionToken)(nil)).
			Where("user_id = ?", token.UserID).
			Where("purpose = ?", string(token.Purpose)).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to delete prior tokens: %w", err)
		}

		dbToken := &database.ActionToken{
			ID:        token.ID,
			TokenHash: token.TokenHash,
			UserID:    token.UserID,
			Purpose:   string(token.Purpose),
			ExpiresAt: token.ExpiresAt,
		}
		if _, err := tx.NewInsert().Model(dbToken).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store action token: %w", err)
		}

		return nil
	})
}

// GetByHash retrieves a token by hash for the given purpose
func (r *ActionTokenRepository) GetByHash(ctx context.Context, tokenHash string, purpose ActionTokenPurpose) (*ActionToken, error) {
	dbToken := new(database.ActionToken)
	err := r.db.NewSelect().
		Model(dbToken).
		Where("token_hash = ?", tokenHash).
		Where("purpose = ?", string(purpose)).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionTokenNotFound
		}
		return nil, fmt.Errorf("failed to get action token: %w", err)
	}

	return &ActionToken{
		ID:        dbToken.ID,
		TokenHash: dbToken.TokenHash,
		UserID:    dbToken.UserID,
		Purpose:   ActionTokenPurpose(dbToken.Purpose),
		ExpiresAt: dbToken.ExpiresAt,
		CreatedAt: dbToken.CreatedAt,
	}, nil
}

// Delete removes a token; used both for consumption and for expired tokens
// found during lookup.
func (r *ActionTokenRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*database.ActionToken)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete action token: %w", err)
	}

	return nil
}
