package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fotonphotos/tokenmarket/internal/aggregate"
	"github.com/fotonphotos/tokenmarket/internal/alerts"
	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/indicators"
	"github.com/fotonphotos/tokenmarket/internal/store"
	"github.com/fotonphotos/tokenmarket/internal/vendor"
)

// fetchOne runs C1 against the primary vendor, falling back to the secondary
// when the primary reports a transient failure or exhausts its credit pool —
// the spec names "two backends, same contract" but leaves backend selection
// on a single tick open; this scheduler tries primary first and only turns to
// secondary when primary cannot serve the call at all.
func (s *Scheduler) fetchOne(ctx context.Context, tokenAddress, pairAddress string, fromTime, toTime int64, timeframe string) (vendor.FetchResult, error) {
	start := time.Now()
	result, err := s.primary.FetchCandles(ctx, tokenAddress, pairAddress, fromTime, toTime, timeframe)
	if err == nil {
		if s.metrics != nil {
			s.metrics.RecordFetch("primary", timeframe, time.Since(start))
			s.metrics.RecordCreditsUsed("primary", "pool", result.CreditsUsed)
		}
		return result, nil
	}
	if s.metrics != nil {
		s.metrics.RecordFetchFailure("primary", classifyFetchError(err))
	}
	if errors.Is(err, vendor.ErrVendorTransient) || errors.Is(err, vendor.ErrNoCredits) {
		s.logger.Warn("primary vendor unavailable, falling back to secondary",
			zap.String("tokenAddress", tokenAddress), zap.Error(err))
		start = time.Now()
		result, err := s.secondary.FetchCandles(ctx, tokenAddress, pairAddress, fromTime, toTime, timeframe)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordFetchFailure("secondary", classifyFetchError(err))
			}
			return vendor.FetchResult{}, err
		}
		if s.metrics != nil {
			s.metrics.RecordFetch("secondary", timeframe, time.Since(start))
			s.metrics.RecordCreditsUsed("secondary", "pool", result.CreditsUsed)
		}
		return result, nil
	}
	return vendor.FetchResult{}, err
}

// classifyFetchError maps a vendor error to the short reason label recorded
// on tokenmarket_vendor_fetch_failures_total.
func classifyFetchError(err error) string {
	switch {
	case errors.Is(err, vendor.ErrNoCredits):
		return "no_credits"
	case errors.Is(err, vendor.ErrVendorTransient):
		return "transient"
	case errors.Is(err, vendor.ErrVendorPermanent):
		return "permanent"
	case errors.Is(err, vendor.ErrUnsupportedTimeframe):
		return "unsupported_timeframe"
	case errors.Is(err, vendor.ErrDataInvalid):
		return "data_invalid"
	default:
		return "unknown"
	}
}

// runFetchPipeline implements tick steps 2-3 for one due (token, 15m) record:
// fetch, persist, derive 1h/4h, then run the four indicator engines
// independently over every timeframe that received new data.
func (s *Scheduler) runFetchPipeline(ctx context.Context, due store.DueRecord) error {
	token := due.Token
	tf := due.Timeframe
	tfSec, ok := config.TimeframeSeconds(tf.Timeframe)
	if !ok {
		return fmt.Errorf("%w: %s", vendor.ErrUnsupportedTimeframe, tf.Timeframe)
	}

	fromTime := tf.LastFetchedAt + 1
	if token.PairCreatedTime > fromTime {
		fromTime = token.PairCreatedTime
	}
	now := s.now()

	result, err := s.fetchOne(ctx, token.TokenAddress, token.PairAddress, fromTime, now, tf.Timeframe)
	if err != nil {
		return fmt.Errorf("fetch %s/%s: %w", token.TokenAddress, tf.Timeframe, err)
	}
	if len(result.Candles) == 0 {
		return nil
	}

	rows := make([]store.OHLCVCandle, 0, len(result.Candles))
	for _, c := range result.Candles {
		rows = append(rows, store.OHLCVCandle{
			TokenAddress: token.TokenAddress,
			PairAddress:  token.PairAddress,
			Timeframe:    tf.Timeframe,
			UnixTime:     c.UnixTime,
			TimeBucket:   (c.UnixTime / tfSec) * tfSec,
			Open:         c.Open,
			High:         c.High,
			Low:          c.Low,
			Close:        c.Close,
			Volume:       c.Volume,
			Trades:       c.Trades,
			IsComplete:   true,
			DataSource:   "vendor",
		})
	}

	if err := s.candles.UpsertBatch(ctx, rows); err != nil {
		return fmt.Errorf("persist %s/%s: %w", token.TokenAddress, tf.Timeframe, err)
	}
	if err := s.catalog.Transaction(ctx, func(tx *gorm.DB) error {
		return s.catalog.AdvanceAfterFetch(ctx, tx, token.TokenAddress, tf.Timeframe, result.LatestTime, tfSec)
	}); err != nil {
		return fmt.Errorf("advance timeframe %s/%s: %w", token.TokenAddress, tf.Timeframe, err)
	}

	touchedTimeframes := []string{tf.Timeframe}
	for _, higher := range []string{"1h", "4h"} {
		lower, err := s.candles.All(ctx, token.TokenAddress, inferLower(higher))
		if err != nil {
			return fmt.Errorf("read lower candles for %s/%s: %w", token.TokenAddress, higher, err)
		}
		folded, err := aggregate.Fold(lower, higher, now)
		if err != nil {
			return fmt.Errorf("fold %s/%s: %w", token.TokenAddress, higher, err)
		}
		if len(folded) == 0 {
			continue
		}
		for i := range folded {
			folded[i].PairAddress = token.PairAddress
		}
		if err := s.candles.UpsertBatch(ctx, folded); err != nil {
			return fmt.Errorf("persist aggregated %s/%s: %w", token.TokenAddress, higher, err)
		}
		touchedTimeframes = append(touchedTimeframes, higher)
	}

	for _, timeframe := range touchedTimeframes {
		if err := s.runIndicatorPass(ctx, token, timeframe); err != nil {
			s.logger.Error("indicator pass failed",
				zap.String("tokenAddress", token.TokenAddress), zap.String("timeframe", timeframe), zap.Error(err))
		}
	}
	return nil
}

func inferLower(higherTimeframe string) string {
	switch higherTimeframe {
	case "1h":
		return "15m"
	case "4h":
		return "1h"
	default:
		return ""
	}
}

// runIndicatorPass runs C5-C8 independently over one (token, timeframe), then
// C9 over the bars that now have every configured indicator column settled.
// Each engine's state-plus-columns write happens in its own transaction, per
// the spec's "each pass is one DB transaction" rule.
func (s *Scheduler) runIndicatorPass(ctx context.Context, token store.TrackedToken, timeframe string) error {
	tfSec, ok := config.TimeframeSeconds(timeframe)
	if !ok {
		return fmt.Errorf("%w: %s", vendor.ErrUnsupportedTimeframe, timeframe)
	}

	all, err := s.candles.All(ctx, token.TokenAddress, timeframe)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return nil
	}

	passStart := time.Now()
	if err := s.runVWAPPass(ctx, token, timeframe, all); err != nil {
		return fmt.Errorf("vwap pass: %w", err)
	}
	if err := s.runAVWAPPass(ctx, token, timeframe, all, tfSec); err != nil {
		return fmt.Errorf("avwap pass: %w", err)
	}
	for _, period := range config.EMAPeriods {
		if err := s.runEMAPass(ctx, token, timeframe, period, all, tfSec); err != nil {
			return fmt.Errorf("ema%d pass: %w", period, err)
		}
	}
	if err := s.runRSIPass(ctx, token, timeframe, all, tfSec); err != nil {
		return fmt.Errorf("rsi pass: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordIndicatorPass("all", timeframe, time.Since(passStart), len(all))
	}
	if err := s.runAlertPass(ctx, token, timeframe); err != nil {
		return fmt.Errorf("alert pass: %w", err)
	}
	return nil
}

func (s *Scheduler) runVWAPPass(ctx context.Context, token store.TrackedToken, timeframe string, all []store.OHLCVCandle) error {
	return s.candles.Transaction(ctx, func(tx *gorm.DB) error {
		var existing store.VWAPSession
		found := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).First(&existing).Error == nil

		var existingPtr *store.VWAPSession
		if found {
			existingPtr = &existing
		}
		result := indicators.ComputeVWAP(existingPtr, all, all[len(all)-1].UnixTime)
		result.Session.TokenAddress = token.TokenAddress
		result.Session.PairAddress = token.PairAddress
		result.Session.Timeframe = timeframe

		if err := saveVWAPSession(tx, result.Session, found); err != nil {
			return err
		}
		for unixTime, value := range result.UpdatedBars {
			v := value
			if err := tx.Model(&store.OHLCVCandle{}).
				Where("token_address = ? AND timeframe = ? AND unix_time = ?", token.TokenAddress, timeframe, unixTime).
				Update("vwap_value", &v).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func saveVWAPSession(tx *gorm.DB, session store.VWAPSession, found bool) error {
	if found {
		return tx.Where("token_address = ? AND timeframe = ?", session.TokenAddress, session.Timeframe).Save(&session).Error
	}
	return tx.Create(&session).Error
}

func (s *Scheduler) runAVWAPPass(ctx context.Context, token store.TrackedToken, timeframe string, all []store.OHLCVCandle, tfSec int64) error {
	return s.candles.Transaction(ctx, func(tx *gorm.DB) error {
		var existing store.AVWAPState
		found := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).First(&existing).Error == nil

		var existingPtr *store.AVWAPState
		if found {
			existingPtr = &existing
		}
		result := indicators.ComputeAVWAP(existingPtr, all, tfSec)
		result.State.TokenAddress = token.TokenAddress
		result.State.PairAddress = token.PairAddress
		result.State.Timeframe = timeframe

		if found {
			if err := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).Save(&result.State).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&result.State).Error; err != nil {
			return err
		}
		for unixTime, value := range result.UpdatedBars {
			v := value
			if err := tx.Model(&store.OHLCVCandle{}).
				Where("token_address = ? AND timeframe = ? AND unix_time = ?", token.TokenAddress, timeframe, unixTime).
				Update("avwap_value", &v).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Scheduler) runEMAPass(ctx context.Context, token store.TrackedToken, timeframe string, period int, all []store.OHLCVCandle, tfSec int64) error {
	column := emaColumn(period)
	return s.candles.Transaction(ctx, func(tx *gorm.DB) error {
		var existing store.EMAState
		found := tx.Where("token_address = ? AND timeframe = ? AND period = ?", token.TokenAddress, timeframe, period).First(&existing).Error == nil

		var existingPtr *store.EMAState
		if found {
			existingPtr = &existing
		}
		result := indicators.ComputeEMA(existingPtr, period, all, token.PairCreatedTime, tfSec)
		result.State.TokenAddress = token.TokenAddress
		result.State.PairAddress = token.PairAddress
		result.State.Timeframe = timeframe

		if found {
			if err := tx.Where("token_address = ? AND timeframe = ? AND period = ?", token.TokenAddress, timeframe, period).Save(&result.State).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&result.State).Error; err != nil {
			return err
		}
		for unixTime, value := range result.UpdatedBars {
			v := value
			if err := tx.Model(&store.OHLCVCandle{}).
				Where("token_address = ? AND timeframe = ? AND unix_time = ?", token.TokenAddress, timeframe, unixTime).
				Update(column, &v).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func emaColumn(period int) string {
	switch period {
	case 12:
		return "ema12"
	case 34:
		return "ema34"
	default:
		return "ema21"
	}
}

func (s *Scheduler) runRSIPass(ctx context.Context, token store.TrackedToken, timeframe string, all []store.OHLCVCandle, tfSec int64) error {
	return s.candles.Transaction(ctx, func(tx *gorm.DB) error {
		var existing store.RSIState
		found := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).First(&existing).Error == nil

		var existingPtr *store.RSIState
		var priorClose *decimal.Decimal
		var newCandles []store.OHLCVCandle
		firstAlignedBar := (token.PairCreatedTime / tfSec) * tfSec

		if found {
			existingPtr = &existing
			for _, c := range all {
				if c.UnixTime > existing.LastUpdatedUnix {
					newCandles = append(newCandles, c)
				}
			}
			priorClose = existing.LastClosePrice
		} else {
			newCandles = all
		}

		result := indicators.ComputeRSI(existingPtr, priorClose, newCandles, firstAlignedBar, tfSec)
		result.State.TokenAddress = token.TokenAddress
		result.State.PairAddress = token.PairAddress
		result.State.Timeframe = timeframe

		if found {
			if err := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).Save(&result.State).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&result.State).Error; err != nil {
			return err
		}
		for unixTime, out := range result.UpdatedBars {
			updates := map[string]interface{}{}
			if out.RSI != nil {
				updates["rsi"] = out.RSI
			}
			if out.StochRSI != nil {
				updates["stoch_rsi"] = out.StochRSI
			}
			if out.K != nil {
				updates["stoch_k"] = out.K
			}
			if out.D != nil {
				updates["stoch_d"] = out.D
			}
			if len(updates) == 0 {
				continue
			}
			if err := tx.Model(&store.OHLCVCandle{}).
				Where("token_address = ? AND timeframe = ? AND unix_time = ?", token.TokenAddress, timeframe, unixTime).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// runAlertPass runs C9 over every bar whose indicator columns are fully
// settled, in ascending order, advancing the alert state bar by bar so touch
// debounce and cross detection see every intermediate bar.
func (s *Scheduler) runAlertPass(ctx context.Context, token store.TrackedToken, timeframe string) error {
	return s.candles.Transaction(ctx, func(tx *gorm.DB) error {
		var state store.Alert
		found := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).First(&state).Error == nil
		if !found {
			state = store.NewAlert(token.TokenAddress, token.PairAddress, timeframe)
		}

		var bars []store.OHLCVCandle
		if err := tx.Where("token_address = ? AND timeframe = ? AND unix_time > ?", token.TokenAddress, timeframe, state.LastUpdatedUnix).
			Order("unix_time ASC").Find(&bars).Error; err != nil {
			return err
		}

		var events []alerts.Event
		for _, bar := range bars {
			if !indicatorsSettled(bar) {
				continue
			}
			var fired []alerts.Event
			state, fired = alerts.ProcessBar(state, bar, s.alertsCfg)
			events = append(events, fired...)
		}

		if found {
			if err := tx.Where("token_address = ? AND timeframe = ?", token.TokenAddress, timeframe).Save(&state).Error; err != nil {
				return err
			}
		} else if err := tx.Create(&state).Error; err != nil {
			return err
		}

		for _, ev := range events {
			if s.metrics != nil {
				s.metrics.RecordAlertEvent(string(ev.Type), token.PairAddress)
			}
			var candle store.OHLCVCandle
			if err := tx.Where("token_address = ? AND timeframe = ? AND unix_time = ?", token.TokenAddress, timeframe, ev.UnixTime).First(&candle).Error; err != nil {
				continue
			}
			n := alerts.BuildNotification(ctx, ev, token.TokenID, token.TokenAddress, token.Symbol, timeframe, candle, s.marketCap)
			if err := tx.Create(&n).Error; err != nil {
				return err
			}
			status, sendErr := s.notifier.Send(ctx, n)
			if s.metrics != nil {
				s.metrics.RecordNotificationDelivery(string(status))
			}
			updates := map[string]interface{}{"status": status}
			if sendErr != nil {
				updates["error_details"] = sendErr.Error()
			}
			if err := tx.Model(&store.Notification{}).Where("id = ?", n.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// indicatorsSettled reports whether a bar is ready for the alert engine: VWAP,
// AVWAP and the 12/21/34 EMAs must all be non-null, since trend classification,
// status encoding and the AVWAP flip all read them. RSI/Stoch-RSI are not
// checked: they contribute when present, and a bar before their availability
// horizon is still eligible (universal invariant 6 treats pre-availability as
// a valid state, not a missing one).
func indicatorsSettled(bar store.OHLCVCandle) bool {
	return bar.VWAPValue != nil && bar.AVWAPValue != nil &&
		bar.EMA21 != nil && bar.EMA34 != nil && bar.EMA12 != nil
}
