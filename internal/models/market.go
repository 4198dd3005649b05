package models

import "time"

// Market разделяет спот и фьючерсы одного инструмента.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

type EventKind string

const (
	EventTicker EventKind = "ticker"
	EventKline  EventKind = "kline"
	EventDepth  EventKind = "depth"
)

// Event: то, что отдаёт наружу фид (стрим в Engine). Заполнено ровно одно из Ticker/Kline/Depth.
type Event struct {
	Feed       string
	Market     Market
	Kind       EventKind
	Symbol     string
	Ticker     *Ticker
	Kline      *Kline
	Depth      *Depth
	ReceivedAt time.Time
}

// Ticker: 24h rolling ticker.
type Ticker struct {
	Symbol        string
	LastPrice     float64
	ChangePercent float64
	High          float64
	Low           float64
	Volume        float64
	EventTime     time.Time
}

type Kline struct {
	Symbol   string
	Interval string
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	IsClosed bool
}

type Level struct {
	Price float64
	Qty   float64
}

// Depth: полный снапшот top-N уровней, не инкрементальный дифф.
type Depth struct {
	Symbol string
	Bids   []Level // best first
	Asks   []Level // best first
}

// Quote: последняя цена одного рынка в опубликованном снапшоте.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	High24h   float64 `json:"high24h"`
	Low24h    float64 `json:"low24h"`
	Volume24h float64 `json:"volume24h"`
	Timestamp string  `json:"timestamp"`
}
