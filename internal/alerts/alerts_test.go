package alerts

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/store"
)

func dec(v string) *decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return &d
}

func testCfg() config.AlertsConfig {
	return config.AlertsConfig{
		TouchThresholdSeconds:     7200,
		OversoldK:                 20,
		OversoldD:                 20,
		OverboughtK:               80,
		OverboughtD:               80,
		MaxBandTouchNotifications: 2,
	}
}

func TestProcessBar_BullishCrossEmitsOnce(t *testing.T) {
	state := store.Alert{Trend: string(Bearish)}
	candle := store.OHLCVCandle{UnixTime: 1000, EMA21: dec("10"), EMA34: dec("9"), Low: dec0("10"), High: dec0("10"), Close: dec0("10")}

	next, events := ProcessBar(state, candle, testCfg())

	require.Len(t, events, 1)
	assert.Equal(t, BullishCross, events[0].Type)
	assert.Equal(t, "21_34", events[0].Pair)
	assert.Equal(t, string(Bullish), next.Trend)
	assert.Equal(t, 0, next.TouchCount)
}

func dec0(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func TestProcessBar_BandTouchDebouncedByThreshold(t *testing.T) {
	cfg := testCfg()
	state := store.Alert{Trend: string(Bullish), LatestTouchUnix: 1000}
	// EMA21 at 10, bar's low/high straddle it -> a touch, but within the
	// debounce window of the previous touch.
	candle := store.OHLCVCandle{UnixTime: 1000 + int64(cfg.TouchThresholdSeconds) - 1, EMA21: dec("10"), EMA34: dec("9"), Low: dec0("9.5"), High: dec0("10.5"), Close: dec0("10.2")}

	_, events := ProcessBar(state, candle, cfg)

	for _, ev := range events {
		assert.NotEqual(t, BandTouch, ev.Type, "a touch inside the debounce window must not emit")
	}
}

func TestProcessBar_BandTouchFiresAfterThresholdElapses(t *testing.T) {
	cfg := testCfg()
	state := store.Alert{Trend: string(Bullish), LatestTouchUnix: 1000}
	candle := store.OHLCVCandle{UnixTime: 1000 + int64(cfg.TouchThresholdSeconds) + 1, EMA21: dec("10"), EMA34: dec("9"), Low: dec0("9.5"), High: dec0("10.5"), Close: dec0("10.2")}

	next, events := ProcessBar(state, candle, cfg)

	found := false
	for _, ev := range events {
		if ev.Type == BandTouch && ev.Pair == "21_34" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, next.TouchCount)
}

func TestProcessBar_BandTouchSuppressedAfterMaxNotifications(t *testing.T) {
	cfg := testCfg()
	cfg.MaxBandTouchNotifications = 1
	state := store.Alert{Trend: string(Bullish), TouchCount: 1, LatestTouchUnix: 1000}
	candle := store.OHLCVCandle{UnixTime: 1000 + int64(cfg.TouchThresholdSeconds) + 1, EMA21: dec("10"), EMA34: dec("9"), Low: dec0("9.5"), High: dec0("10.5"), Close: dec0("10.2")}

	next, events := ProcessBar(state, candle, cfg)

	assert.Equal(t, 2, next.TouchCount, "the debounced touch still advances the counter")
	for _, ev := range events {
		assert.NotEqual(t, BandTouch, ev.Type, "touch count beyond the cap must not emit a new notification")
	}
}

func TestProcessBar_AVWAPBreakoutAndBreakdown(t *testing.T) {
	cfg := testCfg()
	state := store.Alert{AVWAPPricePosition: store.PositionBelow}
	above := store.OHLCVCandle{UnixTime: 1000, AVWAPValue: dec("10"), Close: dec0("11"), Low: dec0("10.5"), High: dec0("11.5")}

	next, events := ProcessBar(state, above, cfg)
	require.Len(t, events, 1)
	assert.Equal(t, AVWAPBreakout, events[0].Type)
	assert.Equal(t, store.PositionAbove, next.AVWAPPricePosition)

	below := store.OHLCVCandle{UnixTime: 2000, AVWAPValue: dec("10"), Close: dec0("9"), Low: dec0("8.5"), High: dec0("9.5")}
	final, events2 := ProcessBar(next, below, cfg)
	require.Len(t, events2, 1)
	assert.Equal(t, AVWAPBreakdown, events2[0].Type)
	assert.Equal(t, store.PositionBelow, final.AVWAPPricePosition)
}

func TestProcessBar_FreshlyConstructedAlertDefaultsToBelowSoBreakoutStillFires(t *testing.T) {
	cfg := testCfg()
	// store.NewAlert is the exact constructor the scheduler calls for a
	// (token, timeframe) pair seen for the first time (internal/scheduler/
	// pipeline.go's runAlertPass). Building the test state through it,
	// rather than hand-setting AVWAPPricePosition, exercises the real
	// production construction path instead of masking a regression where
	// the constructor stops defaulting the field to PositionBelow.
	state := store.NewAlert("token-1", "pair-1", "15m")
	candle := store.OHLCVCandle{UnixTime: 1000, AVWAPValue: dec("10"), Close: dec0("11"), Low: dec0("10.5"), High: dec0("11.5")}

	next, events := ProcessBar(state, candle, cfg)

	require.Len(t, events, 1)
	assert.Equal(t, AVWAPBreakout, events[0].Type)
	assert.Equal(t, store.PositionAbove, next.AVWAPPricePosition)
}

func TestProcessBar_StochRSIOversoldConfluenceRequiresBullishTrendAndTouch(t *testing.T) {
	cfg := testCfg()
	state := store.Alert{Trend: string(Bullish)}
	candle := store.OHLCVCandle{
		UnixTime: 1000,
		EMA21:    dec("10"), EMA34: dec("9"),
		Low: dec0("9.5"), High: dec0("10.5"), Close: dec0("10.2"),
		StochK: dec("10"), StochD: dec("15"),
	}

	_, events := ProcessBar(state, candle, cfg)

	found := false
	for _, ev := range events {
		if ev.Type == StochRSIOversold {
			found = true
		}
	}
	assert.True(t, found, "a bullish bar touching the band with K/D below the oversold thresholds must confluence")
}
