// Package store contains the GORM models and repositories backing the
// relational tables named in the spec: trackedtokens, timeframemetadata,
// ohlcvdetails, vwapsessions, avwapstates, emastates, rsistates, alerts,
// servicecredentials, and notification.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdditionSource records how a token entered the tracked set.
type AdditionSource string

const (
	AdditionManual    AdditionSource = "MANUAL"
	AdditionAutomatic AdditionSource = "AUTOMATIC"
)

// TokenStatus is the lifecycle status of a tracked token.
type TokenStatus string

const (
	TokenActive   TokenStatus = "ACTIVE"
	TokenDisabled TokenStatus = "DISABLED"
)

// TrackedToken is the identity and lifecycle record for one on-chain pair.
type TrackedToken struct {
	TokenID         uint64         `gorm:"column:token_id;primaryKey;autoIncrement"`
	TokenAddress    string         `gorm:"column:token_address;uniqueIndex:uq_tracked_token_address;not null"`
	Symbol          string         `gorm:"column:symbol;not null"`
	Name            string         `gorm:"column:name;not null"`
	PairAddress     string         `gorm:"column:pair_address;not null"`
	PairCreatedTime int64          `gorm:"column:pair_created_time;not null"`
	AdditionSource  AdditionSource `gorm:"column:addition_source;type:varchar(16);not null"`
	Status          TokenStatus    `gorm:"column:status;type:varchar(16);not null;default:ACTIVE"`
	EnabledAt       *time.Time     `gorm:"column:enabled_at"`
	DisabledAt      *time.Time     `gorm:"column:disabled_at"`
	DisabledReason  string         `gorm:"column:disabled_reason"`
	AddedBy         string         `gorm:"column:added_by"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (TrackedToken) TableName() string { return "trackedtokens" }

// TimeframeRecord is the scheduling state for one (token, timeframe) pair.
type TimeframeRecord struct {
	ID           uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress string `gorm:"column:token_address;uniqueIndex:uq_timeframe_key;not null"`
	PairAddress  string `gorm:"column:pair_address;not null"`
	Timeframe    string `gorm:"column:timeframe;uniqueIndex:uq_timeframe_key;not null"`
	NextFetchAt  int64  `gorm:"column:next_fetch_at;not null"`
	LastFetchedAt int64 `gorm:"column:last_fetched_at;not null"`
	IsActive     bool   `gorm:"column:is_active;not null;default:true"`
}

func (TimeframeRecord) TableName() string { return "timeframemetadata" }

// OHLCVCandle is one completed bar, carrying the indicator columns the
// downstream engines fill in as they run.
type OHLCVCandle struct {
	ID           uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress string          `gorm:"column:token_address;uniqueIndex:uq_candle_key;not null"`
	PairAddress  string          `gorm:"column:pair_address;not null"`
	Timeframe    string          `gorm:"column:timeframe;uniqueIndex:uq_candle_key;not null"`
	TimeframeID  uint64          `gorm:"column:timeframe_id"`
	UnixTime     int64           `gorm:"column:unix_time;uniqueIndex:uq_candle_key;not null"`
	TimeBucket   int64           `gorm:"column:time_bucket;not null"`
	Open         decimal.Decimal `gorm:"column:open_price;type:numeric(38,8);not null"`
	High         decimal.Decimal `gorm:"column:high_price;type:numeric(38,8);not null"`
	Low          decimal.Decimal `gorm:"column:low_price;type:numeric(38,8);not null"`
	Close        decimal.Decimal `gorm:"column:close_price;type:numeric(38,8);not null"`
	Volume       decimal.Decimal `gorm:"column:volume;type:numeric(38,4);not null"`
	Trades       int64           `gorm:"column:trades"`
	IsComplete   bool            `gorm:"column:is_complete;not null;default:true"`
	DataSource   string          `gorm:"column:data_source"`

	VWAPValue  *decimal.Decimal `gorm:"column:vwap_value;type:numeric(38,8)"`
	AVWAPValue *decimal.Decimal `gorm:"column:avwap_value;type:numeric(38,8)"`
	EMA12      *decimal.Decimal `gorm:"column:ema12;type:numeric(38,8)"`
	EMA21      *decimal.Decimal `gorm:"column:ema21;type:numeric(38,8)"`
	EMA34      *decimal.Decimal `gorm:"column:ema34;type:numeric(38,8)"`
	RSI        *decimal.Decimal `gorm:"column:rsi;type:numeric(38,8)"`
	StochRSI   *decimal.Decimal `gorm:"column:stoch_rsi;type:numeric(38,8)"`
	StochK     *decimal.Decimal `gorm:"column:stoch_k;type:numeric(38,8)"`
	StochD     *decimal.Decimal `gorm:"column:stoch_d;type:numeric(38,8)"`
	Trend      string           `gorm:"column:trend"`
	Status     string           `gorm:"column:status"`
	Trend12    string           `gorm:"column:trend12"`
	Status12   string           `gorm:"column:status12"`
}

func (OHLCVCandle) TableName() string { return "ohlcvdetails" }

// VWAPSession is the daily-session VWAP state for one (token, timeframe).
type VWAPSession struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress     string          `gorm:"column:token_address;uniqueIndex:uq_vwap_key;not null"`
	PairAddress      string          `gorm:"column:pair_address;not null"`
	Timeframe        string          `gorm:"column:timeframe;uniqueIndex:uq_vwap_key;not null"`
	SessionStartUnix int64           `gorm:"column:session_start_unix;not null"`
	SessionEndUnix   int64           `gorm:"column:session_end_unix;not null"`
	CumulativePV     decimal.Decimal `gorm:"column:cumulative_pv;type:numeric(48,8);not null"`
	CumulativeVolume decimal.Decimal `gorm:"column:cumulative_volume;type:numeric(48,4);not null"`
	CurrentVWAP      decimal.Decimal `gorm:"column:current_vwap;type:numeric(38,8)"`
	LastCandleUnix   int64           `gorm:"column:last_candle_unix"`
	NextCandleFetch  int64           `gorm:"column:next_candle_fetch"`
}

func (VWAPSession) TableName() string { return "vwapsessions" }

// AVWAPState is the open-ended anchored-VWAP accumulator for one (token, timeframe).
type AVWAPState struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress     string          `gorm:"column:token_address;uniqueIndex:uq_avwap_key;not null"`
	PairAddress      string          `gorm:"column:pair_address;not null"`
	Timeframe        string          `gorm:"column:timeframe;uniqueIndex:uq_avwap_key;not null"`
	AVWAP            decimal.Decimal `gorm:"column:avwap;type:numeric(38,8)"`
	CumulativePV     decimal.Decimal `gorm:"column:cumulative_pv;type:numeric(48,8);not null"`
	CumulativeVolume decimal.Decimal `gorm:"column:cumulative_volume;type:numeric(48,4);not null"`
	LastUpdatedUnix  int64           `gorm:"column:last_updated_unix"`
	NextFetchTime    int64           `gorm:"column:next_fetch_time"`
}

func (AVWAPState) TableName() string { return "avwapstates" }

// EMAStatus is the availability state of one EMA period row.
type EMAStatus string

const (
	EMANotAvailable EMAStatus = "NOT_AVAILABLE"
	EMAAvailable    EMAStatus = "AVAILABLE"
)

// EMAState is the incremental EMA state for one (token, timeframe, period).
type EMAState struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress     string          `gorm:"column:token_address;uniqueIndex:uq_ema_key;not null"`
	PairAddress      string          `gorm:"column:pair_address;not null"`
	Timeframe        string          `gorm:"column:timeframe;uniqueIndex:uq_ema_key;not null"`
	Period           int             `gorm:"column:period;uniqueIndex:uq_ema_key;not null"`
	EMAValue         *decimal.Decimal `gorm:"column:ema_value;type:numeric(38,8)"`
	Status           EMAStatus       `gorm:"column:status;type:varchar(24);not null"`
	EMAAvailableTime int64           `gorm:"column:ema_available_time;not null"`
	LastUpdatedUnix  int64           `gorm:"column:last_updated_unix"`
	NextFetchTime    int64           `gorm:"column:next_fetch_time"`
}

func (EMAState) TableName() string { return "emastates" }

// RSIState is the Wilder-smoothing + Stoch-RSI/%K/%D state for one (token, timeframe).
type RSIState struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress     string          `gorm:"column:token_address;uniqueIndex:uq_rsi_key;not null"`
	PairAddress      string          `gorm:"column:pair_address;not null"`
	Timeframe        string          `gorm:"column:timeframe;uniqueIndex:uq_rsi_key;not null"`
	RSIInterval      int             `gorm:"column:rsi_interval;not null;default:14"`
	StochRSIInterval int             `gorm:"column:stoch_rsi_interval;not null;default:14"`
	KInterval        int             `gorm:"column:k_interval;not null;default:3"`
	DInterval        int             `gorm:"column:d_interval;not null;default:3"`
	AvgGain          decimal.Decimal `gorm:"column:avg_gain;type:numeric(38,8)"`
	AvgLoss          decimal.Decimal `gorm:"column:avg_loss;type:numeric(38,8)"`
	LastClosePrice   *decimal.Decimal `gorm:"column:last_close_price;type:numeric(38,8)"`
	RSIValue         *decimal.Decimal `gorm:"column:rsi_value;type:numeric(38,8)"`
	RSIValuesJSON    string          `gorm:"column:rsi_values_json;type:text"`
	StochRSIValuesJSON string        `gorm:"column:stoch_rsi_values_json;type:text"`
	KValuesJSON      string          `gorm:"column:k_values_json;type:text"`
	StochRSIValue    *decimal.Decimal `gorm:"column:stoch_rsi_value;type:numeric(38,8)"`
	KValue           *decimal.Decimal `gorm:"column:k_value;type:numeric(38,8)"`
	DValue           *decimal.Decimal `gorm:"column:d_value;type:numeric(38,8)"`
	RSIAvailableTime int64           `gorm:"column:rsi_available_time;not null"`
	LastUpdatedUnix  int64           `gorm:"column:last_updated_unix"`
	Status           EMAStatus       `gorm:"column:status;type:varchar(24);not null"`

	// WarmupCount tracks gains/losses folded before the first 14-period SMA
	// seed is available; not persisted, rebuilt by ComputeRSI from status and
	// last_updated_unix (relative to the first aligned bar) whenever a stored
	// row is loaded, since it is purely a function of how many bars have been
	// processed since the RSI anchor.
	WarmupCount int `gorm:"-"`
}

func (RSIState) TableName() string { return "rsistates" }

// AVWAPPosition is the close-relative-to-AVWAP flip-flop tracked by the alert engine.
type AVWAPPosition string

const (
	PositionBelow AVWAPPosition = "BELOW"
	PositionAbove AVWAPPosition = "ABOVE"
)

// Alert is the per-(token,timeframe) alert state row.
type Alert struct {
	ID                 uint64           `gorm:"column:id;primaryKey;autoIncrement"`
	TokenAddress       string           `gorm:"column:token_address;uniqueIndex:uq_alert_key;not null"`
	PairAddress        string           `gorm:"column:pair_address;not null"`
	Timeframe          string           `gorm:"column:timeframe;uniqueIndex:uq_alert_key;not null"`
	VWAP               *decimal.Decimal `gorm:"column:vwap;type:numeric(38,8)"`
	AVWAP              *decimal.Decimal `gorm:"column:avwap;type:numeric(38,8)"`
	EMA12              *decimal.Decimal `gorm:"column:ema12;type:numeric(38,8)"`
	EMA21              *decimal.Decimal `gorm:"column:ema21;type:numeric(38,8)"`
	EMA34              *decimal.Decimal `gorm:"column:ema34;type:numeric(38,8)"`
	RSI                *decimal.Decimal `gorm:"column:rsi;type:numeric(38,8)"`
	StochK             *decimal.Decimal `gorm:"column:stoch_k;type:numeric(38,8)"`
	StochD             *decimal.Decimal `gorm:"column:stoch_d;type:numeric(38,8)"`
	Trend              string           `gorm:"column:trend"`
	Status             string           `gorm:"column:status"`
	Trend12            string           `gorm:"column:trend12"`
	Status12           string           `gorm:"column:status12"`
	TouchCount         int              `gorm:"column:touch_count;not null;default:0"`
	LatestTouchUnix    int64            `gorm:"column:latest_touch_unix"`
	TouchCount12       int              `gorm:"column:touch_count_12;not null;default:0"`
	LatestTouchUnix12  int64            `gorm:"column:latest_touch_unix_12"`
	AVWAPPricePosition AVWAPPosition    `gorm:"column:avwap_price_position;type:varchar(8)"`
	LastUpdatedUnix    int64            `gorm:"column:last_updated_unix"`
}

func (Alert) TableName() string { return "alerts" }

// NewAlert builds a fresh alert row for a (token, timeframe) pair that has
// never been processed before. AVWAPPricePosition starts at PositionBelow,
// mirroring the original's avwapPricePosition default of BELOW_AVWAP — a bar
// whose close starts above AVWAP on its very first processed row is still a
// breakout, not silently the pre-existing state.
func NewAlert(tokenAddress, pairAddress, timeframe string) Alert {
	return Alert{
		TokenAddress:       tokenAddress,
		PairAddress:        pairAddress,
		Timeframe:          timeframe,
		AVWAPPricePosition: PositionBelow,
	}
}

// ServiceCredential is one API key row in a vendor's credit pool.
type ServiceCredential struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	Service          string    `gorm:"column:service;uniqueIndex:uq_credential_key;not null"`
	KeyLabel         string    `gorm:"column:key_label;uniqueIndex:uq_credential_key;not null"`
	APIKey           string    `gorm:"column:api_key;not null"`
	AvailableCredits int       `gorm:"column:available_credits;not null"`
	DefaultCredits   int       `gorm:"column:default_credits;not null"`
	CreditsPerCall   int       `gorm:"column:credits_per_call;not null"`
	NextResetAt      time.Time `gorm:"column:next_reset_at"`
	IsResetAvailable bool      `gorm:"column:is_reset_available;not null;default:true"`
}

func (ServiceCredential) TableName() string { return "servicecredentials" }

// NotificationStatus is the delivery status of an outbound notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification records one alert emission and the downstream delivery outcome.
type Notification struct {
	ID           uint64             `gorm:"column:id;primaryKey;autoIncrement"`
	Source       string             `gorm:"column:source;not null"`
	ChatGroup    string             `gorm:"column:chat_group;not null"`
	Content      string             `gorm:"column:content;type:text;not null"`
	Status       NotificationStatus `gorm:"column:status;type:varchar(16);not null;default:pending"`
	TokenID      uint64             `gorm:"column:token_id;not null"`
	StrategyType string             `gorm:"column:strategy_type;not null"`
	ButtonsJSON  string             `gorm:"column:buttons_json;type:text"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	SentAt       *time.Time         `gorm:"column:sent_at"`
	ErrorDetails string             `gorm:"column:error_details"`
}

func (Notification) TableName() string { return "notification" }

// AllModels lists every model AutoMigrate must create, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&TrackedToken{},
		&TimeframeRecord{},
		&OHLCVCandle{},
		&VWAPSession{},
		&AVWAPState{},
		&EMAState{},
		&RSIState{},
		&Alert{},
		&ServiceCredential{},
		&Notification{},
	}
}
