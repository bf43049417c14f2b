// Package bootstrap implements the Bootstrap Loader (C11): the new-token and
// old-token onboarding flows that run the full C1->C2->C4->(C5,C6,C7)
// chain once, synchronously, outside the regular scheduler tick. Grounded on
// the new/old-token bootstrap notes in original_source/scheduler/EMAProcessor.py
// (calcualteEMAForNewTokenFromAPI / setEMAForOldTokenFromAPI) and
// AlertsProcessor.py's remark that new and old tokens share one processing path
// once indicator state exists.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fotonphotos/tokenmarket/internal/aggregate"
	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/indicators"
	"github.com/fotonphotos/tokenmarket/internal/store"
	"github.com/fotonphotos/tokenmarket/internal/vendor"
)

// Loader runs the one-shot onboarding chain for a new or pre-existing token.
type Loader struct {
	db        *store.DB
	tokens    *store.TokenRepo
	catalog   *store.TimeframeCatalog
	candles   *store.CandleStore
	primary   vendor.Client
	secondary vendor.Client
	logger    *zap.Logger
}

func New(db *store.DB, tokens *store.TokenRepo, catalog *store.TimeframeCatalog, candles *store.CandleStore, primary, secondary vendor.Client, logger *zap.Logger) *Loader {
	return &Loader{db: db, tokens: tokens, catalog: catalog, candles: candles, primary: primary, secondary: secondary, logger: logger.Named("bootstrap")}
}

// NewTokenInput describes an operator's request to add a token that is being
// tracked from (at or near) its own creation time.
type NewTokenInput struct {
	TokenAddress    string
	PairAddress     string
	Symbol          string
	Name            string
	PairCreatedTime int64
	AdditionSource  store.AdditionSource
	AddedBy         string
}

// EMAAnchor is an operator-supplied seed value for one (timeframe, period)
// pair, used by the old-token flow in place of a derived SMA seed.
type EMAAnchor struct {
	Timeframe     string
	Period        int
	Value         decimal.Decimal
	ReferenceTime int64
}

// OldTokenInput describes an operator's request to add a token that has
// already been trading for a while: only the last 48h is backfilled, and EMA
// state is seeded from operator-supplied anchors rather than derived.
type OldTokenInput struct {
	NewTokenInput
	EMAAnchors []EMAAnchor // one entry per (period, timeframe) combination the operator seeds
}

// AddNewToken runs the new-token flow: full history backfill from
// pairCreatedTime, SMA-seeded EMA/VWAP/AVWAP computed in memory, everything
// persisted in one transaction. On any failure the token is disabled with the
// failure reason rather than left half-initialized.
func (l *Loader) AddNewToken(ctx context.Context, in NewTokenInput) (store.TrackedToken, error) {
	token, err := l.tokens.Upsert(ctx, store.TrackedToken{
		TokenAddress:    in.TokenAddress,
		PairAddress:     in.PairAddress,
		Symbol:          in.Symbol,
		Name:            in.Name,
		PairCreatedTime: in.PairCreatedTime,
		AdditionSource:  in.AdditionSource,
		AddedBy:         in.AddedBy,
	})
	if err != nil {
		return store.TrackedToken{}, fmt.Errorf("%w: %v", ErrBootstrapFailure, err)
	}

	if err := l.runFlow(ctx, token, in.PairCreatedTime, nil); err != nil {
		l.disable(ctx, token.TokenAddress, err)
		return token, err
	}
	return token, nil
}

// AddOldToken runs the old-token flow: a 48h backfill window and operator
// EMA anchors in place of derived seeds.
func (l *Loader) AddOldToken(ctx context.Context, in OldTokenInput) (store.TrackedToken, error) {
	token, err := l.tokens.Upsert(ctx, store.TrackedToken{
		TokenAddress:    in.TokenAddress,
		PairAddress:     in.PairAddress,
		Symbol:          in.Symbol,
		Name:            in.Name,
		PairCreatedTime: in.PairCreatedTime,
		AdditionSource:  in.AdditionSource,
		AddedBy:         in.AddedBy,
	})
	if err != nil {
		return store.TrackedToken{}, fmt.Errorf("%w: %v", ErrBootstrapFailure, err)
	}

	backfillFrom := time.Now().Unix() - 48*3600
	if err := l.runFlow(ctx, token, backfillFrom, in.EMAAnchors); err != nil {
		l.disable(ctx, token.TokenAddress, err)
		return token, err
	}
	return token, nil
}

func (l *Loader) disable(ctx context.Context, tokenAddress string, cause error) {
	if err := l.db.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.tokens.Disable(ctx, tx, tokenAddress, cause.Error())
	}); err != nil {
		l.logger.Error("failed to disable token after bootstrap failure", zap.String("tokenAddress", tokenAddress), zap.Error(err))
	}
}

// runFlow fetches the backfill window, persists 15m then derives 1h/4h, runs
// VWAP/AVWAP/EMA in memory over each timeframe's candles, and commits
// everything in one transaction. emaAnchors is nil for the new-token flow
// (EMA seeds are derived) and populated for the old-token flow.
func (l *Loader) runFlow(ctx context.Context, token store.TrackedToken, backfillFrom int64, emaAnchors []EMAAnchor) error {
	now := time.Now().Unix()
	tfSec15, _ := config.TimeframeSeconds("15m")

	result, err := l.fetchFullHistory(ctx, token, backfillFrom, now, "15m")
	if err != nil {
		return fmt.Errorf("%w: fetch 15m history: %v", ErrBootstrapFailure, err)
	}

	fifteenMin := make([]store.OHLCVCandle, 0, len(result.Candles))
	for _, c := range result.Candles {
		fifteenMin = append(fifteenMin, store.OHLCVCandle{
			TokenAddress: token.TokenAddress,
			PairAddress:  token.PairAddress,
			Timeframe:    "15m",
			UnixTime:     c.UnixTime,
			TimeBucket:   (c.UnixTime / tfSec15) * tfSec15,
			Open:         c.Open,
			High:         c.High,
			Low:          c.Low,
			Close:        c.Close,
			Volume:       c.Volume,
			Trades:       c.Trades,
			IsComplete:   true,
			DataSource:   "bootstrap",
		})
	}

	byTimeframe := map[string][]store.OHLCVCandle{"15m": fifteenMin}
	for _, higher := range []string{"1h", "4h"} {
		lower := byTimeframe[lowerOf(higher)]
		folded, err := aggregate.Fold(lower, higher, now)
		if err != nil {
			return fmt.Errorf("%w: aggregate %s: %v", ErrBootstrapFailure, higher, err)
		}
		for i := range folded {
			folded[i].PairAddress = token.PairAddress
		}
		byTimeframe[higher] = folded
	}

	return l.db.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		nextFetchAt := (token.PairCreatedTime/tfSec15)*tfSec15 + tfSec15
		if err := tx.Create(&store.TimeframeRecord{
			TokenAddress: token.TokenAddress,
			PairAddress:  token.PairAddress,
			Timeframe:    "15m",
			NextFetchAt:  nextFetchAt,
			IsActive:     true,
		}).Error; err != nil {
			return fmt.Errorf("%w: create timeframe record: %v", ErrBootstrapFailure, err)
		}

		for _, tfName := range config.Timeframes {
			bars := byTimeframe[tfName]
			if len(bars) == 0 {
				continue
			}
			tfSec, _ := config.TimeframeSeconds(tfName)

			if err := runInMemoryIndicators(tx, token, tfName, tfSec, bars, emaAnchors); err != nil {
				return err
			}
			if err := tx.Create(&bars).Error; err != nil {
				return fmt.Errorf("%w: persist %s candles: %v", ErrBootstrapFailure, tfName, err)
			}
		}
		return nil
	})
}

// runInMemoryIndicators computes VWAP, AVWAP and EMA(12,21,34) over bars
// entirely in memory (no intermediate DB round-trip, per spec.md §4.11),
// stamping the resulting values directly onto each bar before the single
// batch persist, and writes the derived state rows. RSI (C8) is intentionally
// not run during bootstrap: the spec's bootstrap flow lists only C5, C6, C7;
// the first regular scheduler tick computes RSI from the freshly persisted
// candles.
func runInMemoryIndicators(tx *gorm.DB, token store.TrackedToken, timeframe string, tfSec int64, bars []store.OHLCVCandle, emaAnchorsAll []EMAAnchor) error {
	var emaAnchors []EMAAnchor
	for _, a := range emaAnchorsAll {
		if a.Timeframe == timeframe {
			emaAnchors = append(emaAnchors, a)
		}
	}
	vwapResult := indicators.ComputeVWAP(nil, bars, bars[len(bars)-1].UnixTime)
	vwapResult.Session.TokenAddress = token.TokenAddress
	vwapResult.Session.PairAddress = token.PairAddress
	vwapResult.Session.Timeframe = timeframe
	if err := tx.Create(&vwapResult.Session).Error; err != nil {
		return fmt.Errorf("%w: create vwap session: %v", ErrBootstrapFailure, err)
	}

	avwapResult := indicators.ComputeAVWAP(nil, bars, tfSec)
	avwapResult.State.TokenAddress = token.TokenAddress
	avwapResult.State.PairAddress = token.PairAddress
	avwapResult.State.Timeframe = timeframe
	if err := tx.Create(&avwapResult.State).Error; err != nil {
		return fmt.Errorf("%w: create avwap state: %v", ErrBootstrapFailure, err)
	}

	applyBarValues(bars, vwapResult.UpdatedBars, avwapResult.UpdatedBars)

	for _, period := range config.EMAPeriods {
		anchor := findAnchor(emaAnchors, period)
		var emaState store.EMAState
		var emaUpdates map[int64]decimal.Decimal

		if anchor != nil {
			emaState = indicators.SeedBootstrapEMA(period, anchor.Value, anchor.ReferenceTime, tfSec)
			emaUpdates = map[int64]decimal.Decimal{anchor.ReferenceTime: anchor.Value}
		} else {
			result := indicators.ComputeEMA(nil, period, bars, token.PairCreatedTime, tfSec)
			emaState = result.State
			emaUpdates = result.UpdatedBars
		}
		emaState.TokenAddress = token.TokenAddress
		emaState.PairAddress = token.PairAddress
		emaState.Timeframe = timeframe
		if err := tx.Create(&emaState).Error; err != nil {
			return fmt.Errorf("%w: create ema%d state: %v", ErrBootstrapFailure, period, err)
		}
		applyEMAValues(bars, period, emaUpdates)
	}
	return nil
}

func applyBarValues(bars []store.OHLCVCandle, vwap, avwap map[int64]decimal.Decimal) {
	for i := range bars {
		if v, ok := vwap[bars[i].UnixTime]; ok {
			val := v
			bars[i].VWAPValue = &val
		}
		if v, ok := avwap[bars[i].UnixTime]; ok {
			val := v
			bars[i].AVWAPValue = &val
		}
	}
}

func applyEMAValues(bars []store.OHLCVCandle, period int, values map[int64]decimal.Decimal) {
	for i := range bars {
		v, ok := values[bars[i].UnixTime]
		if !ok {
			continue
		}
		val := v
		switch period {
		case 12:
			bars[i].EMA12 = &val
		case 34:
			bars[i].EMA34 = &val
		default:
			bars[i].EMA21 = &val
		}
	}
}

func findAnchor(anchors []EMAAnchor, period int) *EMAAnchor {
	for i := range anchors {
		if anchors[i].Period == period {
			return &anchors[i]
		}
	}
	return nil
}

func lowerOf(higherTimeframe string) string {
	switch higherTimeframe {
	case "1h":
		return "15m"
	case "4h":
		return "1h"
	default:
		return ""
	}
}

// fetchFullHistory tries the primary vendor first, falling back to the
// secondary on a transient failure or credit exhaustion — the same policy the
// regular scheduler tick uses for C1 (internal/scheduler/pipeline.go's
// fetchOne), duplicated here since bootstrap runs outside a tick.
func (l *Loader) fetchFullHistory(ctx context.Context, token store.TrackedToken, fromTime, toTime int64, timeframe string) (vendor.FetchResult, error) {
	result, err := l.primary.FetchCandles(ctx, token.TokenAddress, token.PairAddress, fromTime, toTime, timeframe)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, vendor.ErrVendorTransient) || errors.Is(err, vendor.ErrNoCredits) {
		l.logger.Warn("primary vendor unavailable during bootstrap, falling back to secondary",
			zap.String("tokenAddress", token.TokenAddress), zap.Error(err))
		return l.secondary.FetchCandles(ctx, token.TokenAddress, token.PairAddress, fromTime, toTime, timeframe)
	}
	return vendor.FetchResult{}, err
}
