// Package indicators implements the incremental VWAP, AVWAP, EMA and
// RSI/Stoch-RSI engines (C5-C8): each is a "load state + fold new candles ->
// write value + advance state" pass over in-memory decimal arithmetic,
// grounded on original_source/scheduler/{VWAP,AVWAP,EMA,RSI}Processor.py.
package indicators

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

var three = decimal.NewFromInt(3)

// typicalPrice is (H+L+C)/3, the HLC/3 formula VWAP/AVWAP both use.
func typicalPrice(c store.OHLCVCandle) decimal.Decimal {
	return c.High.Add(c.Low).Add(c.Close).Div(three)
}

// dayBounds returns the 00:00:00 and 23:59:59 UTC unix bounds of the day
// containing unixTime.
func dayBounds(unixTime int64) (start, end int64) {
	t := time.Unix(unixTime, 0).UTC()
	startOfDay := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return startOfDay.Unix(), startOfDay.Unix() + 86400 - 1
}

// VWAPPassResult is the outcome of one VWAP engine pass over a (token, timeframe).
type VWAPPassResult struct {
	Session       store.VWAPSession
	UpdatedBars   map[int64]decimal.Decimal // unixTime -> vwapValue
}

// ComputeVWAP advances VWAP state over candles (ascending by unixTime) for
// one (token, timeframe), implementing the three-mode session state machine:
// NEW_SESSION (no prior session row), SAME_DAY_UPDATE (lastFetchedAt within
// the existing session), NEW_DAY_RESET (lastFetchedAt past sessionEndUnix).
func ComputeVWAP(existing *store.VWAPSession, candles []store.OHLCVCandle, lastFetchedAt int64) VWAPPassResult {
	var session store.VWAPSession
	var toFold []store.OHLCVCandle

	switch {
	case existing == nil:
		// NEW_SESSION: session boundaries are today (the day of lastFetchedAt);
		// fold every candle from pair creation whose unixTime falls in today's session.
		start, end := dayBounds(lastFetchedAt)
		session = store.VWAPSession{
			SessionStartUnix: start,
			SessionEndUnix:   end,
			CumulativePV:     decimal.Zero,
			CumulativeVolume: decimal.Zero,
		}
		for _, c := range candles {
			if c.UnixTime >= start && c.UnixTime <= end {
				toFold = append(toFold, c)
			}
		}
	case lastFetchedAt > existing.SessionEndUnix:
		// NEW_DAY_RESET: reset boundaries to today, recompute from scratch.
		start, end := dayBounds(lastFetchedAt)
		session = store.VWAPSession{
			TokenAddress:     existing.TokenAddress,
			PairAddress:      existing.PairAddress,
			Timeframe:        existing.Timeframe,
			SessionStartUnix: start,
			SessionEndUnix:   end,
			CumulativePV:     decimal.Zero,
			CumulativeVolume: decimal.Zero,
		}
		for _, c := range candles {
			if c.UnixTime >= start && c.UnixTime <= end {
				toFold = append(toFold, c)
			}
		}
	default:
		// SAME_DAY_UPDATE: fold only bars after lastCandleUnix.
		session = *existing
		for _, c := range candles {
			if c.UnixTime > existing.LastCandleUnix {
				toFold = append(toFold, c)
			}
		}
	}

	updated := map[int64]decimal.Decimal{}
	for _, c := range toFold {
		if c.Volume.IsZero() {
			// Zero-volume bars contribute 0 to both sums but still advance
			// the cumulative VWAP value written onto the bar.
			if session.CumulativeVolume.IsPositive() {
				updated[c.UnixTime] = session.CumulativePV.Div(session.CumulativeVolume)
			}
			session.LastCandleUnix = c.UnixTime
			continue
		}
		pv := typicalPrice(c).Mul(c.Volume)
		session.CumulativePV = session.CumulativePV.Add(pv)
		session.CumulativeVolume = session.CumulativeVolume.Add(c.Volume)
		session.CurrentVWAP = session.CumulativePV.Div(session.CumulativeVolume)
		updated[c.UnixTime] = session.CurrentVWAP
		session.LastCandleUnix = c.UnixTime
	}

	return VWAPPassResult{Session: session, UpdatedBars: updated}
}
