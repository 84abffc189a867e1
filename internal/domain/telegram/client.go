package telegram

import "gopkg.in/telebot.v3"

// Client sends chat messages. The Telegram surface provider depends on this
// instead of *telebot.Bot so deliveries can be faked in tests.
type Client interface {
	SendMessage(chatID int64, text string, markup *telebot.ReplyMarkup) error
}
