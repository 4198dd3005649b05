package service

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"market_pulse/internal/models"
)

var ErrUnknownStream = errors.New("unknown stream")

// combined stream: {"stream":"btcusdt@ticker","data":{...}}
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// В кадрах Binance есть ключи, отличающиеся только регистром (c/C, l/L, v/V ...).
// Декодер сопоставляет ключи без учёта регистра, поэтому парные ключи объявлены явно.
type tickerFrame struct {
	EventType     string `json:"e"`
	EventTime     int64  `json:"E"`
	Symbol        string `json:"s"`
	PriceChange   string `json:"p"`
	ChangePercent string `json:"P"`
	LastPrice     string `json:"c"`
	CloseTime     int64  `json:"C"`
	OpenPrice     string `json:"o"`
	OpenTime      int64  `json:"O"`
	High          string `json:"h"`
	Low           string `json:"l"`
	LastTradeID   int64  `json:"L"`
	Volume        string `json:"v"`
	QuoteVolume   string `json:"q"`
	LastQty       string `json:"Q"`
	BidPrice      string `json:"b"`
	BidQty        string `json:"B"`
	AskPrice      string `json:"a"`
	AskQty        string `json:"A"`
}

type klineFrame struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime       int64  `json:"t"`
		CloseTime      int64  `json:"T"`
		Symbol         string `json:"s"`
		Interval       string `json:"i"`
		FirstTradeID   int64  `json:"f"`
		LastTradeID    int64  `json:"L"`
		Open           string `json:"o"`
		Close          string `json:"c"`
		High           string `json:"h"`
		Low            string `json:"l"`
		Volume         string `json:"v"`
		TakerBuyVolume string `json:"V"`
		QuoteVolume    string `json:"q"`
		TakerBuyQuote  string `json:"Q"`
		Trades         int64  `json:"n"`
		IsClosed       bool   `json:"x"`
		Ignore         string `json:"B"`
	} `json:"k"`
}

type depthFrame struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// Decode разбирает один кадр combined-стрима в событие.
// Кадры без известного стрима возвращают ErrUnknownStream.
func Decode(feed string, market models.Market, raw []byte, now time.Time) (models.Event, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return models.Event{}, errors.Wrap(err, "decode envelope")
	}
	symbol, kind, ok := parseStream(env.Stream)
	if !ok || len(env.Data) == 0 {
		return models.Event{}, errors.Wrapf(ErrUnknownStream, "stream %q", env.Stream)
	}

	ev := models.Event{Feed: feed, Market: market, Kind: kind, Symbol: symbol, ReceivedAt: now}
	switch kind {
	case models.EventTicker:
		t, err := decodeTicker(env.Data)
		if err != nil {
			return models.Event{}, errors.Wrapf(err, "ticker %s", env.Stream)
		}
		if t.Symbol == "" {
			t.Symbol = symbol
		}
		ev.Ticker = t
	case models.EventKline:
		k, err := decodeKline(env.Data)
		if err != nil {
			return models.Event{}, errors.Wrapf(err, "kline %s", env.Stream)
		}
		if k.Symbol == "" {
			k.Symbol = symbol
		}
		ev.Kline = k
	case models.EventDepth:
		d, err := decodeDepth(env.Data)
		if err != nil {
			return models.Event{}, errors.Wrapf(err, "depth %s", env.Stream)
		}
		d.Symbol = symbol
		ev.Depth = d
	}
	return ev, nil
}

func decodeTicker(data []byte) (*models.Ticker, error) {
	var f tickerFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	var (
		t   = &models.Ticker{Symbol: strings.ToUpper(f.Symbol), EventTime: time.UnixMilli(f.EventTime).UTC()}
		err error
	)
	if t.LastPrice, err = parseFloat("c", f.LastPrice); err != nil {
		return nil, err
	}
	if t.LastPrice <= 0 {
		return nil, errors.Errorf("non-positive last price %q", f.LastPrice)
	}
	// остальные поля информационные: пустые значения допустимы
	t.ChangePercent, _ = parseFloat("P", f.ChangePercent)
	t.High, _ = parseFloat("h", f.High)
	t.Low, _ = parseFloat("l", f.Low)
	t.Volume, _ = parseFloat("v", f.Volume)
	return t, nil
}

func decodeKline(data []byte) (*models.Kline, error) {
	var f klineFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	k := &models.Kline{
		Symbol:   strings.ToUpper(f.Symbol),
		Interval: f.Kline.Interval,
		OpenTime: time.UnixMilli(f.Kline.OpenTime).UTC(),
		IsClosed: f.Kline.IsClosed,
	}
	var err error
	fields := []struct {
		dst  *float64
		name string
		raw  string
	}{
		{&k.Open, "o", f.Kline.Open},
		{&k.High, "h", f.Kline.High},
		{&k.Low, "l", f.Kline.Low},
		{&k.Close, "c", f.Kline.Close},
		{&k.Volume, "v", f.Kline.Volume},
	}
	for _, fl := range fields {
		if *fl.dst, err = parseFloat(fl.name, fl.raw); err != nil {
			return nil, err
		}
	}
	if k.Close <= 0 {
		return nil, errors.Errorf("non-positive close %q", f.Kline.Close)
	}
	return k, nil
}

func decodeDepth(data []byte) (*models.Depth, error) {
	var f depthFrame
	if err := sonic.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	bids, err := levels(f.Bids)
	if err != nil {
		return nil, errors.Wrap(err, "bids")
	}
	asks, err := levels(f.Asks)
	if err != nil {
		return nil, errors.Wrap(err, "asks")
	}
	return &models.Depth{Bids: bids, Asks: asks}, nil
}

func levels(rows [][]string) ([]models.Level, error) {
	out := make([]models.Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, errors.Errorf("short level %v", row)
		}
		px, err := parseFloat("price", row[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseFloat("qty", row[1])
		if err != nil {
			return nil, err
		}
		out = append(out, models.Level{Price: px, Qty: qty})
	}
	return out, nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "field %s", field)
	}
	return v, nil
}

// btcusdt@ticker | btcusdt@kline_15m | btcusdt@depth20@100ms
func parseStream(stream string) (string, models.EventKind, bool) {
	parts := strings.Split(stream, "@")
	if len(parts) < 2 || parts[0] == "" {
		return "", "", false
	}
	symbol := strings.ToUpper(parts[0])
	switch {
	case parts[1] == "ticker":
		return symbol, models.EventTicker, true
	case strings.HasPrefix(parts[1], "kline_"):
		return symbol, models.EventKline, true
	case strings.HasPrefix(parts[1], "depth"):
		return symbol, models.EventDepth, true
	}
	return "", "", false
}
