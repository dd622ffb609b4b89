package delivery

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"oracle/internal/domain/report"
	"oracle/internal/render"
	"oracle/pkg/errors"
)

// TelegramNotifier pushes a short report digest to a chat
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a telegram notifier
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram bot init")
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Name implements Notifier
func (n *TelegramNotifier) Name() string { return "telegram" }

// Notify implements Notifier
func (n *TelegramNotifier) Notify(ctx context.Context, rec *report.Record) error {
	msg := tgbotapi.NewMessage(n.chatID, render.Summary(rec))
	_, err := n.bot.Send(msg)
	return err
}
