package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAlert_DefaultsAVWAPPricePositionToBelow(t *testing.T) {
	alert := NewAlert("token-1", "pair-1", "15m")

	assert.Equal(t, "token-1", alert.TokenAddress)
	assert.Equal(t, "pair-1", alert.PairAddress)
	assert.Equal(t, "15m", alert.Timeframe)
	assert.Equal(t, PositionBelow, alert.AVWAPPricePosition, "a never-processed alert must start BELOW, not the Go zero value, or an AVWAP breakout can never be detected on its first bar")
}
