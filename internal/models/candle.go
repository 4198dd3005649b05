package models

import "time"

type Candle struct {
	BucketStart time.Time `json:"bucketStart"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	SampleCount int       `json:"sampleCount"`
}

// OHLCV: авторитетные данные свечи (kline / REST история).
type OHLCV struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
