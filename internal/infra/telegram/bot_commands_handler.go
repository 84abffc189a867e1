package telegram

import (
	"context"
	"errors"
	"strings"

	"pixel_pets/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Registrar is the part of *telebot.Bot the handlers need.
type Registrar interface {
	Handle(endpoint interface{}, h telebot.HandlerFunc, m ...telebot.MiddlewareFunc)
}

const helpText = `Pixel Pets shows a small pet when it is time for a break.

/subscribe - get the pet in this chat
/unsubscribe - stop getting the pet here
/remind <seconds|duration> [cat|fox] - start a recurring reminder, e.g. /remind 25m fox
/status - show the current reminder
/ack - dismiss the pet
/snooze - hide the pet for a while
/cancel - stop the reminder
/help - show this message`

func RegisterBotCommands(
	ctx context.Context,
	b Registrar,
	subscriptions *app.SubscriptionService,
	baseLogger *logrus.Entry,
) {
	chatLogger := baseLogger.WithField("handler_group", "subscription")

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := chatLogger.WithField("command", "/start").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /start command")
		return c.Send("Hi " + c.Sender().FirstName + "! " + helpText)
	})

	b.Handle("/help", func(c telebot.Context) error {
		chatLogger.WithField("command", "/help").WithField("sender_id", c.Sender().ID).Debug("Processing /help command")
		return c.Send(helpText)
	})

	b.Handle("/subscribe", func(c telebot.Context) error {
		chat := c.Chat()
		logCtx := chatLogger.WithFields(logrus.Fields{
			"command":   "/subscribe",
			"sender_id": c.Sender().ID,
			"chat_id":   chat.ID,
		})

		sub, err := subscriptions.Subscribe(ctx, chat.ID, chatTitle(chat))
		switch {
		case errors.Is(err, app.ErrAlreadySubscribed):
			logCtx.Info("Chat already subscribed")
			return c.Send("This chat already gets the pet.")
		case err != nil:
			logCtx.WithError(err).Error("Failed to subscribe chat")
			return c.Send("Could not subscribe this chat. Please try again later.")
		}
		logCtx.WithField("subscriber_id", sub.ID).Info("Chat subscribed")
		return c.Send("Subscribed! The pet will show up here when a reminder fires.")
	})

	b.Handle("/unsubscribe", func(c telebot.Context) error {
		chat := c.Chat()
		logCtx := chatLogger.WithFields(logrus.Fields{
			"command":   "/unsubscribe",
			"sender_id": c.Sender().ID,
			"chat_id":   chat.ID,
		})

		_, err := subscriptions.Unsubscribe(ctx, chat.ID)
		switch {
		case errors.Is(err, app.ErrNotSubscribed):
			logCtx.Info("Chat was not subscribed")
			return c.Send("This chat is not subscribed.")
		case err != nil:
			logCtx.WithError(err).Error("Failed to unsubscribe chat")
			return c.Send("Could not unsubscribe this chat. Please try again later.")
		}
		logCtx.Info("Chat unsubscribed")
		return c.Send("Unsubscribed. The pet will stay away from this chat.")
	})
}

func chatTitle(chat *telebot.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.Username != "" {
		return "@" + chat.Username
	}
	return strings.TrimSpace(chat.FirstName + " " + chat.LastName)
}
