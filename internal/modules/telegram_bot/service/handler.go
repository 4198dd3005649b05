package service

import (
	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (t *Telegram) handleUpdate(update tgbot.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "status":
		if t.src == nil {
			t.send(chatID, "Снапшоты ещё не готовы")
			return
		}
		t.send(chatID, FormatStatus(t.src.Current()))
	case "start", "help":
		t.send(chatID, "Команды:\n/status — long/short по инструментам")
	default:
		// остальное игнорируем
	}
}
