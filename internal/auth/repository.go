package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/taskhive/internal/database"
	"github.com/redmonkez12/taskhive/internal/user"
)

// Repository handles refresh token family persistence. The operations that
// the session rules require to be atomic (rotation, verification completion,
// password reset completion) run inside a single transaction here rather
// than being stitched together in the service.
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// Store persists a brand-new refresh token (fresh login, fresh family)
func (r *Repository) Store(ctx context.Context, token *RefreshToken) error {
	dbToken := mapRefreshTokenToDB(token)

	_, err := r.db.NewInsert().
		Model(dbToken).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves a refresh token by the hash of its raw form
func (r *Repository) GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	dbToken := new(database.RefreshToken)
	err := r.db.NewSelect().
		Model(dbToken).
		Where("token_hash = ?", tokenHash).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return mapDBRefreshTokenToModel(dbToken), nil
}

// Rotate atomically revokes the presented token and stores its successor in
// the same family. The revoke is conditional on the token still being live:
// if another request already rotated it, Rotate fails with
// ErrRefreshTokenRevoked and inserts nothing, which the caller treats as
// reuse. Partial application would reopen the reuse-detection hole.
func (r *Repository) Rotate(ctx context.Context, oldID uuid.UUID, next *RefreshToken) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*database.RefreshToken)(nil)).
			Set("revoked = TRUE").
			Where("id = ?", oldID).
			Where("revoked = FALSE").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to revoke rotated token: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrRefreshTokenRevoked
		}

		if _, err := tx.NewInsert().Model(mapRefreshTokenToDB(next)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store rotated token: %w", err)
		}

		return nil
	})
}

// RevokeFamily revokes every token in a rotation family. Called on logout and
// whenever reuse of a rotated-away token is detected.
func (r *Repository) RevokeFamily(ctx context.Context, family uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("family = ?", family).
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke token family: %w", err)
	}

	return nil
}

// RevokeAllForUser revokes every family belonging to a user
func (r *Repository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*database.RefreshToken)(nil)).
		Set("revoked = TRUE").
		Where("user_id = ?", userID).
		Where("revoked = FALSE").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to revoke all user tokens: %w", err)
	}

	return nil
}

// CompleteEmailVerification flips the account to ACTIVE and consumes the
// verification token in one transaction.
func (r *Repository) CompleteEmailVerification(ctx context.Context, userID, tokenID uuid.UUID) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*database.User)(nil)).
			Set("status = ?", string(user.StatusActive)).
			Set("updated_at = NOW()").
			Where("id = ?", userID).
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to activate user: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return user.ErrNotFound
		}

		if _, err := tx.NewDelete().
			Model((*database.ActionToken)(nil)).
			Where("id = ?", tokenID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to consume verification token: %w", err)
		}

		return nil
	})
}

// CompletePasswordReset updates the password, consumes the reset token, and
// revokes every refresh token family of the user in one transaction.
func (r *Repository) CompletePasswordReset(ctx context.Context, userID, tokenID uuid.UUID, passwordHash string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model((*database.User)(nil)).
			Set("password_hash = ?", passwordHash).
			Set("updated_at = NOW()").
			Where("id = ?", userID).
			Where("deleted_at IS NULL").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return user.ErrNotFound
		}

		if _, err := tx.NewDelete().
			Model((*database.ActionToken)(nil)).
			Where("id = ?", tokenID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*database.RefreshToken)(nil)).
			Set("revoked = TRUE").
			Where("user_id = ?", userID).
			Where("revoked = FALSE").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to revoke user sessions: %w", err)
		}

		return nil
	})
}

// DeleteExpired removes expired refresh and action tokens
// Should be run periodically (e.g., via cron job)
func (r *Repository) DeleteExpired(ctx context.Context) error {
	_, err := r.db.NewDelete().
		Model((*database.RefreshToken)(nil)).
		Where("expires_at < NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired refresh tokens: %w", err)
	}

	_, err = r.db.NewDelete().
		Model((*database.ActionToken)(nil)).
		Where("expires_at < NOW()").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup expired action tokens: %w", err)
	}

	return nil
}

func mapRefreshTokenToDB(t *RefreshToken) *database.RefreshToken {
	return &database.RefreshToken{
		ID:        t.ID,
		TokenHash: t.TokenHash,
		UserID:    t.UserID,
		Family:    t.Family,
		Revoked:   t.Revoked,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	}
}

// mapDBRefreshTokenToModel converts database model to domain model
func mapDBRefreshTokenToModel(dbt *database.RefreshToken) *RefreshToken {
	return &RefreshToken{
		ID:        dbt.ID,
		TokenHash: dbt.TokenHash,
		UserID:    dbt.UserID,
		Family:    dbt.Family,
		Revoked:   dbt.Revoked,
		ExpiresAt: dbt.ExpiresAt,
		CreatedAt: dbt.CreatedAt,
	}
}
