package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fotonphotos/tokenmarket/internal/store"
)

// Notifier is the out-of-scope downstream chat transport collaborator
// (spec.md §6 "Notification transport"): the core writes a notification row
// and calls this collaborator, which reports back sent or failed.
type Notifier interface {
	Send(ctx context.Context, n store.Notification) (store.NotificationStatus, error)
}

// MarketCapLookup optionally hydrates a notification's market cap from an
// external aggregator. Best-effort: if unavailable, notifications are still
// emitted without it (spec.md §9 Design Notes).
type MarketCapLookup interface {
	MarketCapUSD(ctx context.Context, tokenAddress string) (float64, bool)
}

// LogNotifier is a no-op stand-in for the real chat transport: it logs the
// notification and reports it sent. Used where no downstream collaborator is
// wired, keeping the alert engine's emission path exercised end to end.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Send(ctx context.Context, notification store.Notification) (store.NotificationStatus, error) {
	n.Logger.Info("notification",
		zap.String("chatGroup", notification.ChatGroup),
		zap.String("strategyType", notification.StrategyType),
		zap.String("content", notification.Content))
	return store.NotificationSent, nil
}

// NotificationPayload is the structured body of one alert emission.
type NotificationPayload struct {
	Symbol      string    `json:"symbol"`
	TokenAddress string   `json:"tokenAddress"`
	Timeframe   string    `json:"timeframe"`
	Close       string    `json:"close"`
	UnixTime    int64     `json:"unixTime"`
	Timestamp   string    `json:"timestamp"`
	MarketCapUSD *float64 `json:"marketCapUsd,omitempty"`
	StrategyLabel string  `json:"strategyLabel"`
	TouchedBand string    `json:"touchedBand,omitempty"`
}

// BuildNotification renders an Event into a persistable Notification row,
// best-effort hydrating market cap via lookup if one is wired.
func BuildNotification(ctx context.Context, ev Event, tokenID uint64, tokenAddress, symbol, timeframe string, candle store.OHLCVCandle, lookup MarketCapLookup) store.Notification {
	payload := NotificationPayload{
		Symbol:        symbol,
		TokenAddress:  tokenAddress,
		Timeframe:     timeframe,
		Close:         candle.Close.String(),
		UnixTime:      ev.UnixTime,
		Timestamp:     time.Unix(ev.UnixTime, 0).UTC().Format(time.RFC3339),
		StrategyLabel: string(ev.Type),
		TouchedBand:   ev.TouchedBand,
	}
	if lookup != nil {
		if cap, ok := lookup.MarketCapUSD(ctx, tokenAddress); ok {
			payload.MarketCapUSD = &cap
		}
	}

	content, _ := json.Marshal(payload)
	return store.Notification{
		Source:       "tokenmarket",
		ChatGroup:    fmt.Sprintf("%s:%s", tokenAddress, timeframe),
		Content:      string(content),
		Status:       store.NotificationPending,
		TokenID:      tokenID,
		StrategyType: string(ev.Type),
	}
}
