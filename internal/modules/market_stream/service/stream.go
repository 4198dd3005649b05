package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"market_pulse/internal/models"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
	readLimit    = 1 << 20
)

// Hooks задают реакции на смену состояния соединения и на битые кадры. Любой может быть nil.
type Hooks struct {
	OnConnect    func(feed string)
	OnDisconnect func(feed string, err error)
	OnEvent      func(ev models.Event)
	OnDecodeErr  func(feed string, err error)
}

// Stream держит одно WS-соединение и переподключает его с постоянной задержкой.
type Stream struct {
	spec   FeedSpec
	delay  time.Duration
	dialer *websocket.Dialer
	hooks  Hooks
	log    *zap.Logger
	now    func() time.Time
}

func NewStream(spec FeedSpec, delay time.Duration, hooks Hooks, log *zap.Logger) *Stream {
	return &Stream{
		spec:   spec,
		delay:  delay,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		hooks:  hooks,
		log:    log.Named("stream").With(zap.String("feed", spec.Name)),
		now:    time.Now,
	}
}

// Run блокируется до отмены ctx. После обрыва или ошибки дозвона повтор через delay, без лимита попыток.
func (s *Stream) Run(ctx context.Context, out chan<- models.Event) {
	b := backoff.WithContext(backoff.NewConstantBackOff(s.delay), ctx)

	op := func() error {
		err := s.consume(ctx, out)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = errors.New("stream closed")
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.log.Warn("feed disconnected, reconnecting", zap.Error(err), zap.Duration("in", wait))
	}

	_ = backoff.RetryNotify(op, b, notify)
	s.log.Info("feed stopped")
}

func (s *Stream) consume(ctx context.Context, out chan<- models.Event) (err error) {
	url := s.spec.URL()
	conn, _, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.Close()

	s.log.Info("feed connected", zap.Int("streams", len(s.spec.Streams)))
	if s.hooks.OnConnect != nil {
		s.hooks.OnConnect(s.spec.Name)
	}
	defer func() {
		if s.hooks.OnDisconnect != nil {
			s.hooks.OnDisconnect(s.spec.Name, err)
		}
	}()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.ping(connCtx, conn)

	// ReadMessage не слушает ctx: закрываем соединение при отмене
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		ev, err := Decode(s.spec.Name, s.spec.Market, msg, s.now())
		if err != nil {
			// ответы на служебные запросы и битые кадры пропускаем
			if s.hooks.OnDecodeErr != nil {
				s.hooks.OnDecodeErr(s.spec.Name, err)
			}
			s.log.Debug("skip frame", zap.Error(err))
			continue
		}

		select {
		case out <- ev:
			if s.hooks.OnEvent != nil {
				s.hooks.OnEvent(ev)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) ping(ctx context.Context, conn *websocket.Conn) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}
