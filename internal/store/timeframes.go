package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TimeframeCatalog provides the due-set query and next-fetch bookkeeping (C3).
type TimeframeCatalog struct {
	db *DB
}

func NewTimeframeCatalog(db *DB) *TimeframeCatalog {
	return &TimeframeCatalog{db: db}
}

// DueRecord pairs a TimeframeRecord with the token it belongs to, as returned
// by the due-set query.
type DueRecord struct {
	Token     TrackedToken
	Timeframe TimeframeRecord
}

// DueSet returns every (token, timeframe) where isActive, token.status=ACTIVE,
// and nextFetchAt <= now-bufferSeconds.
func (c *TimeframeCatalog) DueSet(ctx context.Context, now int64, bufferSeconds int64) ([]DueRecord, error) {
	var rows []struct {
		TimeframeRecord
		TrackedToken
	}
	result := c.db.GORM().WithContext(ctx).
		Table("timeframemetadata").
		Select("timeframemetadata.*, trackedtokens.*").
		Joins("JOIN trackedtokens ON trackedtokens.token_address = timeframemetadata.token_address").
		Where("timeframemetadata.is_active = ? AND trackedtokens.status = ? AND timeframemetadata.next_fetch_at <= ?",
			true, TokenActive, now-bufferSeconds).
		Scan(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("due set query: %w", result.Error)
	}

	due := make([]DueRecord, 0, len(rows))
	for _, r := range rows {
		due = append(due, DueRecord{Token: r.TrackedToken, Timeframe: r.TimeframeRecord})
	}
	return due, nil
}

// Upsert creates or updates a TimeframeRecord keyed by (token_address, timeframe).
func (c *TimeframeCatalog) Upsert(ctx context.Context, rec TimeframeRecord) error {
	result := c.db.GORM().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_address"}, {Name: "timeframe"}},
		DoUpdates: clause.AssignmentColumns([]string{"next_fetch_at", "last_fetched_at", "is_active"}),
	}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("upsert timeframe record: %w", result.Error)
	}
	return nil
}

// AdvanceAfterFetch updates lastFetchedAt and nextFetchAt following a
// successful fetch: nextFetchAt = floor(latestTime/tfSec)*tfSec + 2*tfSec,
// the earliest time a bar strictly newer than latestTime is guaranteed complete.
func (c *TimeframeCatalog) AdvanceAfterFetch(ctx context.Context, tx *gorm.DB, tokenAddress, timeframe string, latestTime, tfSec int64) error {
	nextFetchAt := (latestTime/tfSec)*tfSec + 2*tfSec
	result := tx.WithContext(ctx).Model(&TimeframeRecord{}).
		Where("token_address = ? AND timeframe = ?", tokenAddress, timeframe).
		Updates(map[string]interface{}{
			"last_fetched_at": latestTime,
			"next_fetch_at":   nextFetchAt,
		})
	if result.Error != nil {
		return fmt.Errorf("advance timeframe record: %w", result.Error)
	}
	return nil
}
