package indicators

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

const (
	rsiInterval      = 14
	stochRSIInterval = 14
	kInterval        = 3
	dInterval        = 3
)

var (
	hundred  = decimal.NewFromInt(100)
	fourteen = decimal.NewFromInt(rsiInterval)
	thirteen = decimal.NewFromInt(rsiInterval - 1)
)

// RSIAvailableTime is firstAlignedBar + 15*tfSec: RSI needs 15 bars (14 deltas).
func RSIAvailableTime(firstAlignedBar, tfSec int64) int64 {
	return firstAlignedBar + 15*tfSec
}

// RSIBarOutput is one bar's computed indicator quartet.
type RSIBarOutput struct {
	RSI      *decimal.Decimal
	StochRSI *decimal.Decimal
	K        *decimal.Decimal
	D        *decimal.Decimal
}

// RSIPassResult is the outcome of one RSI/Stoch-RSI/%K/%D engine pass.
type RSIPassResult struct {
	State       store.RSIState
	UpdatedBars map[int64]RSIBarOutput
}

func decodeBuffer(raw string) []decimal.Decimal {
	if raw == "" {
		return nil
	}
	var values []decimal.Decimal
	_ = json.Unmarshal([]byte(raw), &values)
	return values
}

func encodeBuffer(values []decimal.Decimal) string {
	b, _ := json.Marshal(values)
	return string(b)
}

func pushCapped(buf []decimal.Decimal, v decimal.Decimal, cap int) []decimal.Decimal {
	buf = append(buf, v)
	if len(buf) > cap {
		buf = buf[len(buf)-cap:]
	}
	return buf
}

// ComputeRSI advances the Wilder-smoothed RSI state machine plus the
// Stoch-RSI / %K / %D chain built on top of it. priorClose is the close of
// the last bar already processed (nil if newCandles starts at the very first
// bar this token/timeframe has ever seen — there is no delta to compute for
// that bar, so it only seeds priorClose for the next pass). newCandles are
// ascending and strictly after the state's lastUpdatedUnix.
func ComputeRSI(existing *store.RSIState, priorClose *decimal.Decimal, newCandles []store.OHLCVCandle, firstAlignedBar, tfSec int64) RSIPassResult {
	state := store.RSIState{
		RSIInterval:      rsiInterval,
		StochRSIInterval: stochRSIInterval,
		KInterval:        kInterval,
		DInterval:        dInterval,
		Status:           store.EMANotAvailable,
	}
	if existing != nil {
		state = *existing
	}
	state.RSIAvailableTime = RSIAvailableTime(firstAlignedBar, tfSec)
	if existing != nil && state.WarmupCount == 0 {
		// WarmupCount is not persisted: rebuild it from the loaded row.
		if state.Status == store.EMAAvailable {
			state.WarmupCount = rsiInterval
		} else if state.LastUpdatedUnix > firstAlignedBar && tfSec > 0 {
			state.WarmupCount = int((state.LastUpdatedUnix - firstAlignedBar) / tfSec)
			if state.WarmupCount >= rsiInterval {
				state.WarmupCount = rsiInterval - 1
			}
		}
	}

	rsiBuf := decodeBuffer(state.RSIValuesJSON)
	stochBuf := decodeBuffer(state.StochRSIValuesJSON)
	kBuf := decodeBuffer(state.KValuesJSON)

	updated := map[int64]RSIBarOutput{}
	prior := priorClose

	for _, c := range newCandles {
		if prior == nil {
			close := c.Close
			prior = &close
			state.LastUpdatedUnix = c.UnixTime
			continue
		}

		delta := c.Close.Sub(*prior)
		gain := decimal.Max(delta, decimal.Zero)
		loss := decimal.Max(delta.Neg(), decimal.Zero)

		if state.WarmupCount < rsiInterval {
			state.AvgGain = state.AvgGain.Add(gain)
			state.AvgLoss = state.AvgLoss.Add(loss)
			state.WarmupCount++
			if state.WarmupCount == rsiInterval {
				state.AvgGain = state.AvgGain.Div(fourteen)
				state.AvgLoss = state.AvgLoss.Div(fourteen)
			}
		} else {
			state.AvgGain = state.AvgGain.Mul(thirteen).Add(gain).Div(fourteen)
			state.AvgLoss = state.AvgLoss.Mul(thirteen).Add(loss).Div(fourteen)
		}

		closeVal := c.Close
		prior = &closeVal
		state.LastClosePrice = prior
		state.LastUpdatedUnix = c.UnixTime

		if state.WarmupCount < rsiInterval {
			continue
		}

		var rsi decimal.Decimal
		if state.AvgLoss.IsZero() {
			rsi = hundred
		} else {
			rs := state.AvgGain.Div(state.AvgLoss)
			rsi = hundred.Sub(hundred.Div(decimal.NewFromInt(1).Add(rs)))
		}
		state.RSIValue = &rsi
		state.Status = store.EMAAvailable
		rsiBuf = pushCapped(rsiBuf, rsi, rsiInterval)

		out := RSIBarOutput{RSI: &rsi}

		if len(rsiBuf) >= stochRSIInterval {
			minRSI, maxRSI := rsiBuf[0], rsiBuf[0]
			for _, v := range rsiBuf {
				if v.LessThan(minRSI) {
					minRSI = v
				}
				if v.GreaterThan(maxRSI) {
					maxRSI = v
				}
			}
			var stochRSI decimal.Decimal
			if maxRSI.Equal(minRSI) {
				stochRSI = decimal.NewFromInt(50)
			} else {
				stochRSI = hundred.Mul(rsi.Sub(minRSI)).Div(maxRSI.Sub(minRSI))
			}
			state.StochRSIValue = &stochRSI
			out.StochRSI = &stochRSI
			stochBuf = pushCapped(stochBuf, stochRSI, kInterval)

			if len(stochBuf) >= kInterval {
				k := sma(stochBuf)
				state.KValue = &k
				out.K = &k
				kBuf = pushCapped(kBuf, k, dInterval)

				if len(kBuf) >= dInterval {
					d := sma(kBuf)
					state.DValue = &d
					out.D = &d
				}
			}
		}

		updated[c.UnixTime] = out
	}

	state.RSIValuesJSON = encodeBuffer(rsiBuf)
	state.StochRSIValuesJSON = encodeBuffer(stochBuf)
	state.KValuesJSON = encodeBuffer(kBuf)

	return RSIPassResult{State: state, UpdatedBars: updated}
}

func sma(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
