package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

// EMAAvailableTime returns floor(pairCreatedTime/tfSec)*tfSec + (period-1)*tfSec,
// the earliest bar time at which an EMA of this period can be defined.
func EMAAvailableTime(pairCreatedTime, tfSec int64, period int) int64 {
	aligned := (pairCreatedTime / tfSec) * tfSec
	return aligned + int64(period-1)*tfSec
}

// alpha returns the EMA smoothing multiplier 2/(p+1).
func alpha(period int) decimal.Decimal {
	return decimal.NewFromInt(2).Div(decimal.NewFromInt(int64(period) + 1))
}

// EMAPassResult is the outcome of one EMA engine pass for one period.
type EMAPassResult struct {
	State       store.EMAState
	UpdatedBars map[int64]decimal.Decimal
}

// ComputeEMA advances the SMA-seeded EMA state machine for one (token,
// timeframe, period). allCandles must be every persisted candle for this
// (token, timeframe), ascending by unixTime — needed to evaluate the
// availability gate and to seed the SMA exactly once.
func ComputeEMA(existing *store.EMAState, period int, allCandles []store.OHLCVCandle, pairCreatedTime, tfSec int64) EMAPassResult {
	state := store.EMAState{Period: period, Status: store.EMANotAvailable}
	if existing != nil {
		state = *existing
	}
	state.EMAAvailableTime = EMAAvailableTime(pairCreatedTime, tfSec, period)
	updated := map[int64]decimal.Decimal{}

	if state.Status == store.EMAAvailable {
		// AVAILABLE: incremental recurrence over bars after lastUpdatedUnix.
		prior := decimal.Zero
		if state.EMAValue != nil {
			prior = *state.EMAValue
		}
		a := alpha(period)
		for _, c := range allCandles {
			if c.UnixTime <= state.LastUpdatedUnix {
				continue
			}
			ema := a.Mul(c.Close).Add(decimal.NewFromInt(1).Sub(a).Mul(prior))
			updated[c.UnixTime] = ema
			prior = ema
			state.LastUpdatedUnix = c.UnixTime
		}
		state.EMAValue = &prior
		if state.LastUpdatedUnix > 0 {
			state.NextFetchTime = state.LastUpdatedUnix + tfSec
		}
		return EMAPassResult{State: state, UpdatedBars: updated}
	}

	// NOT_AVAILABLE: check the gate.
	if len(allCandles) < period {
		state.Status = store.EMANotAvailable
		return EMAPassResult{State: state, UpdatedBars: updated}
	}

	// NOT_AVAILABLE_READY: seed the p-th candle (index p-1) with the SMA of
	// its own close and the prior p-1 closes, then apply the recurrence for
	// every subsequent candle.
	sum := decimal.Zero
	for i := 0; i < period; i++ {
		sum = sum.Add(allCandles[i].Close)
	}
	seed := sum.Div(decimal.NewFromInt(int64(period)))
	seedBar := allCandles[period-1]
	updated[seedBar.UnixTime] = seed
	prior := seed
	lastUnix := seedBar.UnixTime

	a := alpha(period)
	for i := period; i < len(allCandles); i++ {
		c := allCandles[i]
		ema := a.Mul(c.Close).Add(decimal.NewFromInt(1).Sub(a).Mul(prior))
		updated[c.UnixTime] = ema
		prior = ema
		lastUnix = c.UnixTime
	}

	state.Status = store.EMAAvailable
	state.EMAValue = &prior
	state.LastUpdatedUnix = lastUnix
	state.NextFetchTime = lastUnix + tfSec

	return EMAPassResult{State: state, UpdatedBars: updated}
}

// SeedBootstrapEMA builds AVAILABLE state from an operator-supplied anchor EMA
// value at the reference candle; it touches no candle (the caller stamps the
// value onto the reference candle) — used by the
// old-token bootstrap flow (C11) where the operator supplies a known-good
// anchor rather than letting the engine derive one from an SMA seed.
func SeedBootstrapEMA(period int, value decimal.Decimal, referenceTime, tfSec int64) store.EMAState {
	return store.EMAState{
		Period:          period,
		EMAValue:        &value,
		Status:          store.EMAAvailable,
		LastUpdatedUnix: referenceTime,
		NextFetchTime:   referenceTime + tfSec,
	}
}
