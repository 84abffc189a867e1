package telegram

import (
	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message to a chat. Subscribers may be groups, so
// the recipient is addressed as a chat rather than a user.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, markup *telebot.ReplyMarkup) error {
	options := &telebot.SendOptions{ReplyMarkup: markup}
	_, err := tba.bot.Send(&telebot.Chat{ID: chatID}, text, options)
	return err
}
