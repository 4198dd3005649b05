package service

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	health "market_pulse/internal/modules/health/service"
)

var (
	ErrQueueFull      = errors.New("observer queue full")
	ErrObserverClosed = errors.New("observer closed")
)

// Observer получает готовый payload. Send не должен блокироваться.
type Observer interface {
	ID() string
	Send(payload []byte) error
	Close()
}

// SnapshotSource строит текущую карту снапшотов.
type SnapshotSource interface {
	Current() models.SnapshotMap
}

// Registry реализует publish/subscribe. Подписка сразу получает текущую карту,
// сбой доставки одному наблюдателю не влияет на остальных.
type Registry struct {
	mu        sync.RWMutex
	observers map[string]Observer
	source    SnapshotSource

	log     *zap.Logger
	metrics *health.Metrics
}

func NewRegistry(log *zap.Logger, metrics *health.Metrics) *Registry {
	return &Registry{
		observers: make(map[string]Observer),
		log:       log.Named("registry"),
		metrics:   metrics,
	}
}

func (r *Registry) SetSource(src SnapshotSource) {
	r.mu.Lock()
	r.source = src
	r.mu.Unlock()
}

// Subscribe отправляет наблюдателю текущую карту (если в ней есть хоть один
// инструмент) и только потом регистрирует его, чтобы первый кадр не оказался
// новее последующих. Возвращает отправленную карту.
func (r *Registry) Subscribe(o Observer) (models.SnapshotMap, error) {
	current := r.Current()

	var err error
	if len(current) > 0 {
		var payload []byte
		if payload, err = Encode(current); err == nil {
			err = r.deliver(o, payload)
		}
	}

	r.mu.Lock()
	r.observers[o.ID()] = o
	n := len(r.observers)
	r.mu.Unlock()
	r.metrics.Observers.Set(float64(n))

	return current, err
}

func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	o, ok := r.observers[id]
	delete(r.observers, id)
	n := len(r.observers)
	r.mu.Unlock()
	if ok {
		o.Close()
		r.metrics.Observers.Set(float64(n))
	}
}

// Current: свежая карта из источника (пустая, если источник не подключён).
func (r *Registry) Current() models.SnapshotMap {
	r.mu.RLock()
	src := r.source
	r.mu.RUnlock()
	if src == nil {
		return models.SnapshotMap{}
	}
	return src.Current()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// Publish кодирует карту один раз и раздаёт всем. Возвращает число успешных доставок.
func (r *Registry) Publish(_ context.Context, m models.SnapshotMap) (int, error) {
	payload, err := Encode(m)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	targets := make([]Observer, 0, len(r.observers))
	for _, o := range r.observers {
		targets = append(targets, o)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, o := range targets {
		if err := r.deliver(o, payload); err != nil {
			if errors.Is(err, ErrObserverClosed) {
				r.Unsubscribe(o.ID())
			}
			continue
		}
		delivered++
	}
	return delivered, nil
}

// deliver изолирует сбой (включая panic) одного наблюдателя.
func (r *Registry) deliver(o Observer, payload []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("observer panic: %v", p)
		}
		if err != nil {
			r.metrics.DeliveryErrors.Inc()
			r.log.Warn("observer delivery failed", zap.String("observer", o.ID()), zap.Error(err))
		}
	}()
	return o.Send(payload)
}

// Encode: JSON карты с отсортированными ключами.
func Encode(m models.SnapshotMap) ([]byte, error) {
	b, err := sonic.ConfigStd.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot map")
	}
	return b, nil
}
