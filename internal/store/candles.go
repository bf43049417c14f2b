package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CandleStore is the durable, idempotent OHLCV candle repository (C2).
type CandleStore struct {
	db *DB
}

func NewCandleStore(db *DB) *CandleStore {
	return &CandleStore{db: db}
}

// UpsertBatch inserts candles, keyed by (token_address, timeframe, unix_time).
// On conflict only the indicator columns are overwritten; OHLCV columns are
// never updated after first insertion, per the spec's "first insertion is
// source of truth" invariant. The whole batch runs in one transaction.
func (s *CandleStore) UpsertBatch(ctx context.Context, candles []OHLCVCandle) error {
	if len(candles) == 0 {
		return nil
	}
	return s.db.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token_address"}, {Name: "timeframe"}, {Name: "unix_time"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vwap_value", "avwap_value", "ema12", "ema21", "ema34",
				"rsi", "stoch_rsi", "stoch_k", "stoch_d",
				"trend", "status", "trend12", "status12",
			}),
		}).Create(&candles)
		if result.Error != nil {
			return fmt.Errorf("upsert candle batch: %w", result.Error)
		}
		return nil
	})
}

// UpdateIndicators writes back only the indicator columns of one candle,
// used by the incremental indicator engines after they fold a bar.
func (s *CandleStore) UpdateIndicators(ctx context.Context, tx *gorm.DB, c OHLCVCandle) error {
	result := tx.WithContext(ctx).Model(&OHLCVCandle{}).
		Where("token_address = ? AND timeframe = ? AND unix_time = ?", c.TokenAddress, c.Timeframe, c.UnixTime).
		Select("vwap_value", "avwap_value", "ema12", "ema21", "ema34",
			"rsi", "stoch_rsi", "stoch_k", "stoch_d", "trend", "status", "trend12", "status12").
		Updates(c)
	if result.Error != nil {
		return fmt.Errorf("update candle indicators: %w", result.Error)
	}
	return nil
}

// RangeAscending returns candles for (tokenAddress, timeframe) with
// unixTime > cutoff, ordered ascending.
func (s *CandleStore) RangeAscending(ctx context.Context, tokenAddress, timeframe string, cutoff int64) ([]OHLCVCandle, error) {
	var candles []OHLCVCandle
	result := s.db.GORM().WithContext(ctx).
		Where("token_address = ? AND timeframe = ? AND unix_time > ?", tokenAddress, timeframe, cutoff).
		Order("unix_time ASC").
		Find(&candles)
	if result.Error != nil {
		return nil, fmt.Errorf("range ascending: %w", result.Error)
	}
	return candles, nil
}

// All returns every persisted candle for (tokenAddress, timeframe), ascending
// — used by the scheduler's aggregation fold and indicator passes.
func (s *CandleStore) All(ctx context.Context, tokenAddress, timeframe string) ([]OHLCVCandle, error) {
	return s.RangeAscending(ctx, tokenAddress, timeframe, 0)
}

// Transaction runs fn inside one DB transaction, the batching unit the
// scheduler uses per indicator pass.
func (s *CandleStore) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.GORM().WithContext(ctx).Transaction(fn)
}
