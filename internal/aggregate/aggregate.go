// Package aggregate folds a lower-timeframe candle sequence into a higher
// timeframe (15m -> 1h -> 4h), grounded on the finalization-on-boundary logic
// in the teacher's internal/analytics/ohlcv_candle_generator.go, generalized
// from live-trade aggregation to bar-of-bars aggregation.
package aggregate

import (
	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/store"
)

// Fold groups an ascending sequence of lower-timeframe candles into buckets
// of the higher timeframe and emits one higher candle per bucket that is
// complete: every expected lower bar is present and the bucket's end is at
// or before currentCandleStart(now, higherTfSec).
func Fold(lower []store.OHLCVCandle, higherTimeframe string, now int64) ([]store.OHLCVCandle, error) {
	if len(lower) == 0 {
		return nil, nil
	}
	lowerTfSec, ok := config.TimeframeSeconds(inferLowerTimeframe(higherTimeframe))
	if !ok {
		return nil, nil
	}
	higherTfSec, ok := config.TimeframeSeconds(higherTimeframe)
	if !ok {
		return nil, nil
	}

	expectedPerBucket := higherTfSec / lowerTfSec
	currentStart := (now / higherTfSec) * higherTfSec

	buckets := map[int64][]store.OHLCVCandle{}
	order := []int64{}
	for _, c := range lower {
		bucket := (c.UnixTime / higherTfSec) * higherTfSec
		if _, exists := buckets[bucket]; !exists {
			order = append(order, bucket)
		}
		buckets[bucket] = append(buckets[bucket], c)
	}

	var out []store.OHLCVCandle
	for _, bucket := range order {
		bucketEnd := bucket + higherTfSec
		if bucketEnd > currentStart {
			continue
		}
		bars := buckets[bucket]
		if int64(len(bars)) < expectedPerBucket {
			continue
		}

		first := bars[0]
		high := first.High
		low := first.Low
		volume := decimal.Zero
		trades := int64(0)
		for _, b := range bars {
			if b.High.GreaterThan(high) {
				high = b.High
			}
			if b.Low.LessThan(low) {
				low = b.Low
			}
			volume = volume.Add(b.Volume)
			trades += b.Trades
		}
		last := bars[len(bars)-1]

		out = append(out, store.OHLCVCandle{
			TokenAddress: first.TokenAddress,
			PairAddress:  first.PairAddress,
			Timeframe:    higherTimeframe,
			UnixTime:     bucket,
			TimeBucket:   bucket,
			Open:         first.Open,
			High:         high,
			Low:          low,
			Close:        last.Close,
			Volume:       volume,
			Trades:       trades,
			IsComplete:   true,
			DataSource:   "aggregated",
		})
	}
	return out, nil
}

// inferLowerTimeframe returns the immediate lower timeframe that folds into
// higherTimeframe, per the fixed chain 15m -> 1h -> 4h.
func inferLowerTimeframe(higherTimeframe string) string {
	switch higherTimeframe {
	case "1h":
		return "15m"
	case "4h":
		return "1h"
	default:
		return ""
	}
}
