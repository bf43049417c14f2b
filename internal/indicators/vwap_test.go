package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func candle(unixTime int64, high, low, close, volume string) store.OHLCVCandle {
	return store.OHLCVCandle{
		UnixTime: unixTime,
		High:     dec(high),
		Low:      dec(low),
		Close:    dec(close),
		Volume:   dec(volume),
	}
}

func TestComputeVWAP_NewSessionFoldsTodaysBarsOnly(t *testing.T) {
	dayStart := int64(1_700_000_000) / 86400 * 86400
	candles := []store.OHLCVCandle{
		candle(dayStart-900, "1", "1", "1", "100"),  // yesterday, excluded
		candle(dayStart+900, "2", "1", "1.5", "10"), // today
		candle(dayStart+1800, "2", "1", "2", "10"),
	}

	result := ComputeVWAP(nil, candles, dayStart+1800)

	assert.Equal(t, dayStart, result.Session.SessionStartUnix)
	assert.Len(t, result.UpdatedBars, 2)
	assert.Contains(t, result.UpdatedBars, dayStart+900)
	assert.Contains(t, result.UpdatedBars, dayStart+1800)
	assert.NotContains(t, result.UpdatedBars, dayStart-900)
}

func TestComputeVWAP_SameDayUpdateOnlyFoldsNewBars(t *testing.T) {
	dayStart := int64(1_700_000_000) / 86400 * 86400
	existing := &store.VWAPSession{
		SessionStartUnix: dayStart,
		SessionEndUnix:   dayStart + 86399,
		CumulativePV:     dec("15"),
		CumulativeVolume: dec("10"),
		CurrentVWAP:      dec("1.5"),
		LastCandleUnix:   dayStart + 900,
	}
	newBar := candle(dayStart+1800, "2", "2", "2", "10")

	result := ComputeVWAP(existing, []store.OHLCVCandle{newBar}, dayStart+1800)

	assert.Len(t, result.UpdatedBars, 1)
	assert.True(t, result.Session.CurrentVWAP.GreaterThan(existing.CurrentVWAP))
}

func TestComputeVWAP_NewDayResetsSession(t *testing.T) {
	dayStart := int64(1_700_000_000) / 86400 * 86400
	existing := &store.VWAPSession{
		SessionStartUnix: dayStart,
		SessionEndUnix:   dayStart + 86399,
		CumulativePV:     dec("15"),
		CumulativeVolume: dec("10"),
		LastCandleUnix:   dayStart + 900,
	}
	nextDayBar := candle(dayStart+90000, "3", "3", "3", "5")

	result := ComputeVWAP(existing, []store.OHLCVCandle{nextDayBar}, dayStart+90000)

	assert.Equal(t, dayStart+86400, result.Session.SessionStartUnix)
	assert.True(t, result.Session.CurrentVWAP.Equal(dec("3")))
}

func TestComputeVWAP_ZeroVolumeBarCarriesForwardLastValue(t *testing.T) {
	dayStart := int64(1_700_000_000) / 86400 * 86400
	existing := &store.VWAPSession{
		SessionStartUnix: dayStart,
		SessionEndUnix:   dayStart + 86399,
		CumulativePV:     dec("15"),
		CumulativeVolume: dec("10"),
		CurrentVWAP:      dec("1.5"),
		LastCandleUnix:   dayStart + 900,
	}
	zeroVolBar := candle(dayStart+1800, "2", "2", "2", "0")

	result := ComputeVWAP(existing, []store.OHLCVCandle{zeroVolBar}, dayStart+1800)

	assert.True(t, result.UpdatedBars[dayStart+1800].Equal(dec("1.5")))
	assert.True(t, result.Session.CumulativeVolume.Equal(dec("10")))
}
