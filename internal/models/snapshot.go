package models

// Direction: в какой аккумулятор идёт вклад сигнала.
type Direction string

const (
	DirectionNeutral Direction = "neutral"
	DirectionLong    Direction = "long"
	DirectionShort   Direction = "short"
)

// SignalState: состояние гистерезисной машины стакана.
type SignalState string

const (
	StateNeutral        SignalState = "neutral"
	StateVolatile       SignalState = "volatile"
	StateLongDwell      SignalState = "long-dwell"
	StateShortDwell     SignalState = "short-dwell"
	StateConfirmedLong  SignalState = "confirmed-long"
	StateConfirmedShort SignalState = "confirmed-short"
)

// SubSignal: метка и фиксированный вес одного порогового правила.
type SubSignal struct {
	Label     string    `json:"label"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
}

type OrderBookSnapshot struct {
	BestBid        float64 `json:"bestBid"`
	BestAsk        float64 `json:"bestAsk"`
	Spread         float64 `json:"spread"`
	SpreadPercent  float64 `json:"spreadPercent"`
	WindowedBidUSD float64 `json:"bidLiquidityUSD"`
	WindowedAskUSD float64 `json:"askLiquidityUSD"`
	TotalLiquidity float64 `json:"totalLiquidity"`
	Top5Liquidity  float64 `json:"top5Liquidity"`
	RawRatio       float64 `json:"rawRatio"`
	RatioValid     bool    `json:"ratioValid"`
	FilteredRatio  float64 `json:"ratio"`
}

type MACDValue struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Indicators: nil означает «недостаточно истории».
type Indicators struct {
	EMA9           *float64   `json:"ema9"`
	EMA21          *float64   `json:"ema21"`
	EMA50          *float64   `json:"ema50"`
	RSI            *float64   `json:"rsi"`
	MACD           *MACDValue `json:"macd"`
	ATR            *float64   `json:"atr"`
	VolumeRatio    *float64   `json:"volumeRatio"`
	LiquidityRatio *float64   `json:"liquidityRatio"`
}

type OrderBookSignal struct {
	State     SignalState `json:"state"`
	Direction Direction   `json:"direction"`
	Weight    float64     `json:"weight"`
}

// FusedSnapshot собирается заново на каждую публикацию и после этого не меняется.
type FusedSnapshot struct {
	Symbol          string               `json:"symbol"`
	Spot            Quote                `json:"spot"`
	Futures         Quote                `json:"futures"`
	Spread          float64              `json:"spread"`
	SpreadPercent   string               `json:"spreadPercent"`
	OrderBook       *OrderBookSnapshot   `json:"orderBook"`
	Indicators      Indicators           `json:"indicators"`
	OrderBookSignal OrderBookSignal      `json:"orderBookSignal"`
	Signals         map[string]SubSignal `json:"signals"`
	LongPercentage  float64              `json:"longPercentage"`
	ShortPercentage float64              `json:"shortPercentage"`
	Timeframe       string               `json:"timeframe"`
	Candles         int                  `json:"candles"`
	UpdatedAt       string               `json:"updatedAt"`
}

// SnapshotMap уходит наблюдателям: symbol -> snapshot.
type SnapshotMap map[string]FusedSnapshot
