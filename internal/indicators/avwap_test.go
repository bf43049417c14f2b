package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

func TestComputeAVWAP_NeverResetsAcrossDayBoundary(t *testing.T) {
	dayStart := int64(1_700_000_000) / 86400 * 86400
	candles := []store.OHLCVCandle{
		candle(dayStart-86400, "1", "1", "1", "100"),
		candle(dayStart+900, "2", "1", "1.5", "10"),
		candle(dayStart+90000, "3", "2", "2.5", "20"),
	}

	result := ComputeAVWAP(nil, candles, 900)

	assert.Len(t, result.UpdatedBars, 3, "AVWAP folds every candle from the anchor forward regardless of day")
	assert.Equal(t, candles[2].UnixTime, result.State.LastUpdatedUnix)
}

func TestComputeAVWAP_IncrementalPassOnlyFoldsNewBars(t *testing.T) {
	existing := &store.AVWAPState{
		CumulativePV:     dec("15"),
		CumulativeVolume: dec("10"),
		AVWAP:            dec("1.5"),
		LastUpdatedUnix:  1000,
	}
	newBar := candle(1900, "2", "2", "2", "10")

	result := ComputeAVWAP(existing, []store.OHLCVCandle{newBar}, 900)

	assert.Len(t, result.UpdatedBars, 1)
	assert.Equal(t, int64(1900), result.State.LastUpdatedUnix)
	assert.Equal(t, int64(1900+900), result.State.NextFetchTime)
}
