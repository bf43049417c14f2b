package bootstrap

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

func TestLowerOf_MapsHigherTimeframeToItsSource(t *testing.T) {
	assert.Equal(t, "15m", lowerOf("1h"))
	assert.Equal(t, "1h", lowerOf("4h"))
	assert.Equal(t, "", lowerOf("1d"))
}

func TestFindAnchor_ReturnsTheMatchingPeriodOrNil(t *testing.T) {
	anchors := []EMAAnchor{
		{Period: 12, Value: dec("1")},
		{Period: 21, Value: dec("2")},
	}

	found := findAnchor(anchors, 21)
	require.NotNil(t, found)
	assert.True(t, found.Value.Equal(dec("2")))

	assert.Nil(t, findAnchor(anchors, 34))
}

func TestApplyBarValues_StampsVWAPAndAVWAPOntoMatchingBars(t *testing.T) {
	bars := []store.OHLCVCandle{{UnixTime: 100}, {UnixTime: 200}}
	vwap := map[int64]decimal.Decimal{100: dec("1.5")}
	avwap := map[int64]decimal.Decimal{200: dec("2.5")}

	applyBarValues(bars, vwap, avwap)

	require.NotNil(t, bars[0].VWAPValue)
	assert.True(t, bars[0].VWAPValue.Equal(dec("1.5")))
	assert.Nil(t, bars[0].AVWAPValue)
	require.NotNil(t, bars[1].AVWAPValue)
	assert.True(t, bars[1].AVWAPValue.Equal(dec("2.5")))
	assert.Nil(t, bars[1].VWAPValue)
}

func TestApplyEMAValues_RoutesEachPeriodToItsOwnColumn(t *testing.T) {
	bars := []store.OHLCVCandle{{UnixTime: 100}}
	values := map[int64]decimal.Decimal{100: dec("9")}

	applyEMAValues(bars, 12, values)
	applyEMAValues(bars, 21, values)
	applyEMAValues(bars, 34, values)

	require.NotNil(t, bars[0].EMA12)
	require.NotNil(t, bars[0].EMA21)
	require.NotNil(t, bars[0].EMA34)
	assert.True(t, bars[0].EMA12.Equal(dec("9")))
	assert.True(t, bars[0].EMA21.Equal(dec("9")))
	assert.True(t, bars[0].EMA34.Equal(dec("9")))
}

func TestApplyEMAValues_LeavesUnmatchedBarsUntouched(t *testing.T) {
	bars := []store.OHLCVCandle{{UnixTime: 100}, {UnixTime: 200}}
	values := map[int64]decimal.Decimal{100: dec("9")}

	applyEMAValues(bars, 12, values)

	assert.NotNil(t, bars[0].EMA12)
	assert.Nil(t, bars[1].EMA12)
}
