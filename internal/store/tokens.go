package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepo persists TrackedToken rows (the trackedtokens table).
type TokenRepo struct {
	db *DB
}

func NewTokenRepo(db *DB) *TokenRepo {
	return &TokenRepo{db: db}
}

// ByAddress returns the token row for an address, or gorm.ErrRecordNotFound.
func (r *TokenRepo) ByAddress(ctx context.Context, tokenAddress string) (TrackedToken, error) {
	var t TrackedToken
	result := r.db.GORM().WithContext(ctx).Where("token_address = ?", tokenAddress).First(&t)
	return t, result.Error
}

// Upsert creates a token, or re-activates and clears disabledAt if one
// already exists for the address — re-adding an existing row re-activates it
// per the spec's TrackedToken invariant.
func (r *TokenRepo) Upsert(ctx context.Context, t TrackedToken) (TrackedToken, error) {
	existing, err := r.ByAddress(ctx, t.TokenAddress)
	if err == nil {
		existing.Status = TokenActive
		existing.DisabledAt = nil
		existing.DisabledReason = ""
		now := time.Now()
		existing.EnabledAt = &now
		if result := r.db.GORM().WithContext(ctx).Save(&existing); result.Error != nil {
			return TrackedToken{}, fmt.Errorf("reactivate token %s: %w", t.TokenAddress, result.Error)
		}
		return existing, nil
	}
	now := time.Now()
	t.Status = TokenActive
	t.EnabledAt = &now
	if result := r.db.GORM().WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&t); result.Error != nil {
		return TrackedToken{}, fmt.Errorf("create token %s: %w", t.TokenAddress, result.Error)
	}
	return t, nil
}

// Disable soft-disables a token with a reason, used by the bootstrap loader
// when a later backfill step fails.
func (r *TokenRepo) Disable(ctx context.Context, tx *gorm.DB, tokenAddress, reason string) error {
	now := time.Now()
	result := tx.WithContext(ctx).Model(&TrackedToken{}).
		Where("token_address = ?", tokenAddress).
		Updates(map[string]interface{}{
			"status":          TokenDisabled,
			"disabled_at":     &now,
			"disabled_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("disable token %s: %w", tokenAddress, result.Error)
	}
	return nil
}
