package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "market_pulse"

// Metrics держит свой registry, чтобы тесты и несколько fx.App не конфликтовали
// на глобальном DefaultRegisterer.
type Metrics struct {
	Registry *prometheus.Registry

	FeedEvents      *prometheus.CounterVec
	FeedReconnects  *prometheus.CounterVec
	DecodeErrors    *prometheus.CounterVec
	Publishes       *prometheus.CounterVec
	DeliveryErrors  prometheus.Counter
	BootstrapFailed prometheus.Counter
	Observers       prometheus.Gauge
	Instruments     prometheus.Gauge
	Candles         *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FeedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_events_total", Help: "Feed events ingested"},
			[]string{"feed", "kind"},
		),
		FeedReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_reconnects_total", Help: "Feed reconnect attempts"},
			[]string{"feed"},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "feed_decode_errors_total", Help: "Malformed feed frames"},
			[]string{"feed"},
		),
		Publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "publishes_total", Help: "Snapshot publishes"},
			[]string{"trigger"},
		),
		DeliveryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "observer_delivery_errors_total", Help: "Failed deliveries to observers"},
		),
		BootstrapFailed: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "bootstrap_failures_total", Help: "Instruments whose history load failed"},
		),
		Observers: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "observers", Help: "Connected observers"},
		),
		Instruments: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "instruments", Help: "Instruments with state"},
		),
		Candles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "candles", Help: "Candles held per instrument"},
			[]string{"symbol"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FeedEvents, m.FeedReconnects, m.DecodeErrors, m.Publishes,
		m.DeliveryErrors, m.BootstrapFailed, m.Observers, m.Instruments, m.Candles,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
