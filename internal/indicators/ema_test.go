package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

func closes(values ...string) []store.OHLCVCandle {
	out := make([]store.OHLCVCandle, len(values))
	for i, v := range values {
		out[i] = store.OHLCVCandle{UnixTime: int64(i) * 900, Close: dec(v)}
	}
	return out
}

func closesFrom(startUnix int64, values ...string) []store.OHLCVCandle {
	out := make([]store.OHLCVCandle, len(values))
	for i, v := range values {
		out[i] = store.OHLCVCandle{UnixTime: startUnix + int64(i)*900, Close: dec(v)}
	}
	return out
}

func TestComputeEMA_NotAvailableBelowPeriod(t *testing.T) {
	all := closes("1", "2", "3")

	result := ComputeEMA(nil, 12, all, 0, 900)

	assert.Equal(t, store.EMANotAvailable, result.State.Status)
	assert.Empty(t, result.UpdatedBars)
}

func TestComputeEMA_SeedsSMAOnceGateReached(t *testing.T) {
	values := make([]string, 12)
	for i := range values {
		values[i] = "10"
	}
	all := closes(values...)

	result := ComputeEMA(nil, 12, all, 0, 900)

	assert.Equal(t, store.EMAAvailable, result.State.Status)
	seedBarTime := all[11].UnixTime
	assert.True(t, result.UpdatedBars[seedBarTime].Equal(dec("10")), "seed equals the SMA of a flat series")
}

func TestComputeEMA_IncrementalRecurrenceAfterAvailable(t *testing.T) {
	seedValue := dec("10")
	existing := &store.EMAState{
		Period:          12,
		Status:          store.EMAAvailable,
		EMAValue:        &seedValue,
		LastUpdatedUnix: 900 * 11,
	}
	next := closesFrom(900*12, "10", "20")

	result := ComputeEMA(existing, 12, next, 0, 900)

	assert.Equal(t, store.EMAAvailable, result.State.Status)
	assert.True(t, result.State.EMAValue.GreaterThan(seedValue), "a higher close should pull the EMA upward")
}
