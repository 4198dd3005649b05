package service

import (
	"context"
	"fmt"
	"sync"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"market_pulse/internal/models"
	"market_pulse/internal/modules/config"
	"market_pulse/internal/notify"
)

const queueSize = 64

// SnapshotSource отдаёт текущую карту снапшотов для /status.
type SnapshotSource interface {
	Current() models.SnapshotMap
}

// Sender: часть BotAPI, которой хватает нотифайеру.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// Telegram: пассивный нотифайер + команда /status. Отправка идёт через очередь,
// чтобы фиды и движок не ждали HTTP.
type Telegram struct {
	bot    Sender
	chatID int64
	log    *zap.Logger
	src    SnapshotSource

	queue chan string
	wg    sync.WaitGroup
	stop  context.CancelFunc
}

var _ notify.Notifier = (*Telegram)(nil)

func NewTelegram(cfg *config.Config, log *zap.Logger) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot")
	}
	return New(b, cfg.Telegram.ChatID, log), nil
}

func New(bot Sender, chatID int64, log *zap.Logger) *Telegram {
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		log:    log.Named("telegram"),
		queue:  make(chan string, queueSize),
	}
}

// SetSource подключает источник снапшотов для /status.
func (t *Telegram) SetSource(src SnapshotSource) { t.src = src }

// SendService ставит сообщение в очередь; при переполнении сообщение теряется.
// format размечен Markdown, строки и ошибки из args экранируются.
func (t *Telegram) SendService(_ context.Context, format string, args ...any) {
	if t == nil || t.chatID == 0 {
		return
	}
	msg := fmt.Sprintf(format, escapeArgs(args)...)
	select {
	case t.queue <- msg:
	default:
		t.log.Warn("telegram queue full, message dropped")
	}
}

func escapeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case error:
			out[i] = tgbot.EscapeText(tgbot.ModeMarkdown, v.Error())
		case string:
			out[i] = tgbot.EscapeText(tgbot.ModeMarkdown, v)
		case fmt.Stringer:
			out[i] = tgbot.EscapeText(tgbot.ModeMarkdown, v.String())
		default:
			out[i] = a
		}
	}
	return out
}

func (t *Telegram) Start(ctx context.Context) {
	ctx, t.stop = context.WithCancel(ctx)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-t.queue:
				t.send(t.chatID, msg)
			}
		}
	}()

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				t.handleUpdate(upd)
			}
		}
	}()
}

func (t *Telegram) Stop() {
	if t.stop != nil {
		t.stop()
	}
	t.bot.StopReceivingUpdates()
	t.wg.Wait()
}

func (t *Telegram) send(chatID int64, text string) {
	msg := tgbot.NewMessage(chatID, text)
	msg.ParseMode = tgbot.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		t.log.Warn("telegram send failed", zap.Error(err))
	}
}
