// Package alerts implements the alert state machine (C9): trend
// classification, status encoding, touch-count debounce, AVWAP breakout/
// breakdown, and Stoch-RSI confluence, grounded on
// original_source/scheduler/AlertsProcessor.py and AlertsProcessorTypes.py.
package alerts

import (
	"github.com/shopspring/decimal"

	"github.com/fotonphotos/tokenmarket/internal/config"
	"github.com/fotonphotos/tokenmarket/internal/store"
)

// Trend is the EMA-pair trend classification.
type Trend string

const (
	Bullish Trend = "BULLISH"
	Bearish Trend = "BEARISH"
	Neutral Trend = "NEUTRAL"
)

// EventType enumerates every notification-worthy alert event.
type EventType string

const (
	BullishCross      EventType = "BULLISH_CROSS"
	BearishCross      EventType = "BEARISH_CROSS"
	BandTouch         EventType = "BAND_TOUCH"
	AVWAPBreakout     EventType = "AVWAP_BREAKOUT"
	AVWAPBreakdown    EventType = "AVWAP_BREAKDOWN"
	StochRSIOversold  EventType = "STOCH_RSI_OVERSOLD"
	StochRSIOverbought EventType = "STOCH_RSI_OVERBOUGHT"
)

// Event is one notification-worthy occurrence produced by a bar.
type Event struct {
	Type        EventType
	Pair        string // "21_34" or "12_21", empty for pair-agnostic events
	TouchedBand string
	UnixTime    int64
}

// calculateTrend implements: BULLISH iff short >= long, or long is nil with
// short present; BEARISH iff short < long; else NEUTRAL.
func calculateTrend(short, long *decimal.Decimal) Trend {
	switch {
	case short == nil:
		return Neutral
	case long == nil:
		return Bullish
	case short.GreaterThanOrEqual(*long):
		return Bullish
	case short.LessThan(*long):
		return Bearish
	default:
		return Neutral
	}
}

// ProcessBar folds one fully-indicator-available candle into the alert
// state, returning the advanced state and any events the bar produced. The
// caller is responsible for only calling this once all of the bar's
// configured indicator columns are non-null or pre-availability (universal
// invariant 6).
func ProcessBar(state store.Alert, candle store.OHLCVCandle, cfg config.AlertsConfig) (store.Alert, []Event) {
	var events []Event

	prevTrend := Trend(state.Trend)
	curTrend := calculateTrend(candle.EMA21, candle.EMA34)
	prevTrend12 := Trend(state.Trend12)
	curTrend12 := calculateTrend(candle.EMA12, candle.EMA21)

	// --- 21/34 cross + touch ---
	switch {
	case prevTrend == Bearish && curTrend == Bullish:
		state.TouchCount = 0
		state.LatestTouchUnix = candle.UnixTime
		events = append(events, Event{Type: BullishCross, Pair: "21_34", UnixTime: candle.UnixTime})
	case prevTrend == Bullish && curTrend == Bearish:
		state.TouchCount = 0
		events = append(events, Event{Type: BearishCross, Pair: "21_34", UnixTime: candle.UnixTime})
	}

	if touched, band := touchedEMA(candle, candle.EMA21, candle.EMA34, "EMA21", "EMA34"); curTrend == Bullish && prevTrend != Bearish && touched {
		if state.LatestTouchUnix == 0 || candle.UnixTime-state.LatestTouchUnix >= int64(cfg.TouchThresholdSeconds) {
			state.TouchCount++
			state.LatestTouchUnix = candle.UnixTime
			if state.TouchCount <= cfg.MaxBandTouchNotifications {
				events = append(events, Event{Type: BandTouch, Pair: "21_34", TouchedBand: band, UnixTime: candle.UnixTime})
			}
		}
	}

	// --- 12/21 cross + touch (mirrors the 21/34 pair) ---
	switch {
	case prevTrend12 == Bearish && curTrend12 == Bullish:
		state.TouchCount12 = 0
		state.LatestTouchUnix12 = candle.UnixTime
		events = append(events, Event{Type: BullishCross, Pair: "12_21", UnixTime: candle.UnixTime})
	case prevTrend12 == Bullish && curTrend12 == Bearish:
		state.TouchCount12 = 0
		events = append(events, Event{Type: BearishCross, Pair: "12_21", UnixTime: candle.UnixTime})
	}

	if touched, band := touchedEMA(candle, candle.EMA12, candle.EMA21, "EMA12", "EMA21"); curTrend12 == Bullish && prevTrend12 != Bearish && touched {
		if state.LatestTouchUnix12 == 0 || candle.UnixTime-state.LatestTouchUnix12 >= int64(cfg.TouchThresholdSeconds) {
			state.TouchCount12++
			state.LatestTouchUnix12 = candle.UnixTime
			if state.TouchCount12 <= cfg.MaxBandTouchNotifications {
				events = append(events, Event{Type: BandTouch, Pair: "12_21", TouchedBand: band, UnixTime: candle.UnixTime})
			}
		}
	}

	// --- AVWAP breakout/breakdown ---
	if candle.AVWAPValue != nil {
		switch {
		case candle.Close.GreaterThan(*candle.AVWAPValue) && state.AVWAPPricePosition == store.PositionBelow:
			state.AVWAPPricePosition = store.PositionAbove
			events = append(events, Event{Type: AVWAPBreakout, UnixTime: candle.UnixTime})
		case candle.Close.LessThan(*candle.AVWAPValue) && state.AVWAPPricePosition == store.PositionAbove:
			state.AVWAPPricePosition = store.PositionBelow
			events = append(events, Event{Type: AVWAPBreakdown, UnixTime: candle.UnixTime})
		}
	}

	// --- Stoch-RSI confluence, evaluated once per EMA pair ---
	events = append(events, stochEvents(candle, curTrend, candle.EMA21, candle.EMA34, "EMA21", "EMA34", cfg)...)
	events = append(events, stochEvents(candle, curTrend12, candle.EMA12, candle.EMA21, "EMA12", "EMA21", cfg)...)

	// --- status encoding ---
	state.Trend = string(curTrend)
	state.Trend12 = string(curTrend12)
	state.Status = encodeStatus(presentBands(candle.AVWAPValue, candle.VWAPValue, candle.EMA21, candle.EMA34, "EMA21", "EMA34"),
		candle.Low, candle.High, candle.Close)
	state.Status12 = encodeStatus(presentBands(candle.AVWAPValue, candle.VWAPValue, candle.EMA12, candle.EMA21, "EMA12", "EMA21"),
		candle.Low, candle.High, candle.Close)

	state.VWAP = candle.VWAPValue
	state.AVWAP = candle.AVWAPValue
	state.EMA12 = candle.EMA12
	state.EMA21 = candle.EMA21
	state.EMA34 = candle.EMA34
	state.RSI = candle.RSI
	state.StochK = candle.StochK
	state.StochD = candle.StochD
	state.LastUpdatedUnix = candle.UnixTime

	return state, events
}

// touchedEMA reports whether [low,high] covers either EMA value, and which
// one (short is checked first, matching the source's short-then-long order).
func touchedEMA(candle store.OHLCVCandle, short, long *decimal.Decimal, shortLabel, longLabel string) (bool, string) {
	if short != nil && didTouch(candle.Low, candle.High, *short) {
		return true, shortLabel
	}
	if long != nil && didTouch(candle.Low, candle.High, *long) {
		return true, longLabel
	}
	return false, ""
}

// stochEvents evaluates the oversold/overbought confluence for one EMA pair:
// trend must be BULLISH, the bar must have touched the short or long EMA of
// that pair, and %K/%D must both clear the configured threshold.
func stochEvents(candle store.OHLCVCandle, trend Trend, short, long *decimal.Decimal, shortLabel, longLabel string, cfg config.AlertsConfig) []Event {
	if trend != Bullish || candle.StochK == nil || candle.StochD == nil {
		return nil
	}
	touched, band := touchedEMA(candle, short, long, shortLabel, longLabel)
	if !touched {
		return nil
	}
	k := candle.StochK.InexactFloat64()
	d := candle.StochD.InexactFloat64()
	var events []Event
	if k < float64(cfg.OversoldK) && d < float64(cfg.OversoldD) {
		events = append(events, Event{Type: StochRSIOversold, TouchedBand: band, UnixTime: candle.UnixTime})
	}
	if k > float64(cfg.OverboughtK) && d > float64(cfg.OverboughtD) {
		events = append(events, Event{Type: StochRSIOverbought, TouchedBand: band, UnixTime: candle.UnixTime})
	}
	return events
}

// presentBands assembles the non-null bands for status encoding.
func presentBands(avwap, vwap, shortEMA, longEMA *decimal.Decimal, shortLabel, longLabel string) []band {
	var bands []band
	if avwap != nil {
		bands = append(bands, band{label: "AVWAP", value: *avwap})
	}
	if vwap != nil {
		bands = append(bands, band{label: "VWAP", value: *vwap})
	}
	if shortEMA != nil {
		bands = append(bands, band{label: shortLabel, value: *shortEMA})
	}
	if longEMA != nil {
		bands = append(bands, band{label: longLabel, value: *longEMA})
	}
	return bands
}
