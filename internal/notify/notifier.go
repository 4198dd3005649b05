// Package notify описывает канал служебных уведомлений (фиды, подтверждённые сигналы).
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type Notifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Log пишет уведомления в лог, когда Telegram не настроен.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log { return &Log{log: log.Named("notify")} }

func (l *Log) SendService(_ context.Context, format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

// Recorder копит сообщения в памяти, для тестов.
type Recorder struct {
	ch chan string
}

func NewRecorder(size int) *Recorder { return &Recorder{ch: make(chan string, size)} }

func (r *Recorder) SendService(_ context.Context, format string, args ...any) {
	select {
	case r.ch <- fmt.Sprintf(format, args...):
	default:
	}
}

func (r *Recorder) Messages() <-chan string { return r.ch }
