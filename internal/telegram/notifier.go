// Package telegram mirrors in-app notifications to users who linked a
// Telegram chat. Send-only: the bot never polls for updates.
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends notification messages through the Telegram Bot API.
type Notifier struct {
	api *tgbotapi.BotAPI
}

// NewNotifier authenticates the bot token against the Telegram API.
func NewNotifier(token string) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Notifier{api: api}, nil
}

// SendMessage delivers one plain-text message to a chat.
func (n *Notifier) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := n.api.Send(msg)
	return err
}
