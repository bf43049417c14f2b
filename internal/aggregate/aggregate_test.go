package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func bar15m(unixTime int64, open, high, low, close, volume string, trades int64) store.OHLCVCandle {
	return store.OHLCVCandle{
		TokenAddress: "token-1",
		PairAddress:  "pair-1",
		Timeframe:    "15m",
		UnixTime:     unixTime,
		Open:         dec(open),
		High:         dec(high),
		Low:          dec(low),
		Close:        dec(close),
		Volume:       dec(volume),
		Trades:       trades,
	}
}

func TestFold_CompleteBucketEmitsOneHigherCandle(t *testing.T) {
	hourStart := int64(3600 * 10)
	lower := []store.OHLCVCandle{
		bar15m(hourStart, "1", "1.2", "0.9", "1.1", "10", 3),
		bar15m(hourStart+900, "1.1", "1.3", "1.0", "1.2", "20", 4),
		bar15m(hourStart+1800, "1.2", "1.4", "1.1", "1.3", "30", 5),
		bar15m(hourStart+2700, "1.3", "1.5", "1.2", "1.4", "40", 6),
	}
	now := hourStart + 3600 + 1

	out, err := Fold(lower, "1h", now)

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, hourStart, out[0].UnixTime)
	assert.True(t, out[0].Open.Equal(dec("1")))
	assert.True(t, out[0].Close.Equal(dec("1.4")))
	assert.True(t, out[0].High.Equal(dec("1.5")))
	assert.True(t, out[0].Low.Equal(dec("0.9")))
	assert.True(t, out[0].Volume.Equal(dec("100")))
	assert.Equal(t, int64(18), out[0].Trades)
}

func TestFold_IncompleteBucketIsDropped(t *testing.T) {
	hourStart := int64(3600 * 10)
	lower := []store.OHLCVCandle{
		bar15m(hourStart, "1", "1.2", "0.9", "1.1", "10", 3),
		bar15m(hourStart+900, "1.1", "1.3", "1.0", "1.2", "20", 4),
	}
	now := hourStart + 3600 + 1

	out, err := Fold(lower, "1h", now)

	require.NoError(t, err)
	assert.Empty(t, out, "a bucket missing bars must never emit a partial higher candle")
}

func TestFold_InProgressBucketIsDroppedEvenIfComplete(t *testing.T) {
	hourStart := int64(3600 * 10)
	lower := []store.OHLCVCandle{
		bar15m(hourStart, "1", "1.2", "0.9", "1.1", "10", 3),
		bar15m(hourStart+900, "1.1", "1.3", "1.0", "1.2", "20", 4),
		bar15m(hourStart+1800, "1.2", "1.4", "1.1", "1.3", "30", 5),
		bar15m(hourStart+2700, "1.3", "1.5", "1.2", "1.4", "40", 6),
	}
	now := hourStart + 1800 // still mid-bucket

	out, err := Fold(lower, "1h", now)

	require.NoError(t, err)
	assert.Empty(t, out, "a bucket still in progress at now must not be emitted")
}

func TestFold_UnsupportedTimeframeReturnsNilWithoutError(t *testing.T) {
	out, err := Fold([]store.OHLCVCandle{bar15m(0, "1", "1", "1", "1", "1", 1)}, "1d", 10_000)

	require.NoError(t, err)
	assert.Nil(t, out)
}
