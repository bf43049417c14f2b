package indicators

import (
	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

// AVWAPPassResult is the outcome of one AVWAP engine pass.
type AVWAPPassResult struct {
	State       store.AVWAPState
	UpdatedBars map[int64]decimal.Decimal
}

// ComputeAVWAP advances the open-ended anchored-VWAP accumulator. Unlike
// VWAP it never resets: on the first pass it folds every candle from the
// anchor (pair creation) forward; thereafter it folds only bars with
// unixTime > lastUpdatedUnix. Each bar's AVWAP value is the running
// cumulative ratio after folding it.
func ComputeAVWAP(existing *store.AVWAPState, candles []store.OHLCVCandle, tfSeconds int64) AVWAPPassResult {
	var state store.AVWAPState
	if existing != nil {
		state = *existing
	}

	var toFold []store.OHLCVCandle
	for _, c := range candles {
		if c.UnixTime > state.LastUpdatedUnix {
			toFold = append(toFold, c)
		}
	}

	updated := map[int64]decimal.Decimal{}
	for _, c := range toFold {
		pv := typicalPrice(c).Mul(c.Volume)
		state.CumulativePV = state.CumulativePV.Add(pv)
		state.CumulativeVolume = state.CumulativeVolume.Add(c.Volume)
		if state.CumulativeVolume.IsPositive() {
			state.AVWAP = state.CumulativePV.Div(state.CumulativeVolume)
			updated[c.UnixTime] = state.AVWAP
		}
		state.LastUpdatedUnix = c.UnixTime
	}
	if state.LastUpdatedUnix > 0 {
		state.NextFetchTime = state.LastUpdatedUnix + tfSeconds
	}

	return AVWAPPassResult{State: state, UpdatedBars: updated}
}
