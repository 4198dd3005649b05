package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisObserver перепубликует каждый payload в канал Redis pub/sub.
type RedisObserver struct {
	client  redis.UniversalClient
	channel string
	log     *zap.Logger

	queue  chan []byte
	once   sync.Once
	closed chan struct{}
	done   chan struct{}
}

func NewRedisObserver(client redis.UniversalClient, channel string, log *zap.Logger) *RedisObserver {
	return &RedisObserver{
		client:  client,
		channel: channel,
		log:     log.Named("redis"),
		queue:   make(chan []byte, sendBuffer),
		closed:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (o *RedisObserver) ID() string { return "redis:" + o.channel }

func (o *RedisObserver) Send(payload []byte) error {
	select {
	case <-o.closed:
		return ErrObserverClosed
	default:
	}
	select {
	case o.queue <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (o *RedisObserver) Close() {
	o.once.Do(func() { close(o.closed) })
}

// Run публикует очередь до Close. Ошибки Redis только логируются.
func (o *RedisObserver) Run(ctx context.Context) {
	defer close(o.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.closed:
			return
		case msg := <-o.queue:
			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := o.client.Publish(pubCtx, o.channel, msg).Err(); err != nil {
				o.log.Warn("redis publish failed", zap.Error(err))
			}
			cancel()
		}
	}
}

// Wait ждёт выхода из Run.
func (o *RedisObserver) Wait() { <-o.done }
