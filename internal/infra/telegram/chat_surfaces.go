package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/domain/subscriber"
	"pixel_pets/internal/domain/surface"
	tgdomain "pixel_pets/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

const surfacePrefix = "tg:"

// Inline buttons attached to every pet message. They double as handler
// endpoints, see RegisterReminderHandlers.
var (
	btnAck    = telebot.Btn{Unique: "pet_ack", Text: "Got it"}
	btnSnooze = telebot.Btn{Unique: "pet_snooze", Text: "Snooze"}
)

func petMarkup() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(btnAck, btnSnooze))
	return markup
}

// SubscriberLister returns the chats that should receive the pet.
type SubscriberLister interface {
	ListActive(ctx context.Context) ([]*subscriber.Subscriber, error)
}

// ChatSurfaces exposes subscribed Telegram chats as presentation surfaces.
type ChatSurfaces struct {
	subscribers SubscriberLister
	client      tgdomain.Client
}

func NewChatSurfaces(subscribers SubscriberLister, client tgdomain.Client) *ChatSurfaces {
	return &ChatSurfaces{subscribers: subscribers, client: client}
}

func (s *ChatSurfaces) Surfaces(ctx context.Context) ([]surface.Surface, error) {
	subs, err := s.subscribers.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]surface.Surface, 0, len(subs))
	for _, sub := range subs {
		out = append(out, surface.Surface{
			ID:   surfacePrefix + strconv.FormatInt(sub.ChatID, 10),
			Kind: surface.KindTelegram,
		})
	}
	return out, nil
}

// Deliver sends the pet as a message with inline buttons. Sent messages
// cannot be taken back, so DISMISS_PET is a no-op.
func (s *ChatSurfaces) Deliver(_ context.Context, target surface.Surface, n surface.Notification) error {
	chatID, err := strconv.ParseInt(strings.TrimPrefix(target.ID, surfacePrefix), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram surface id %q: %w", target.ID, err)
	}
	if n.Type != surface.NotifyShowPet {
		return nil
	}
	return s.client.SendMessage(chatID, petMessage(n.Animal), petMarkup())
}

func petMessage(animal reminder.Animal) string {
	switch animal {
	case reminder.AnimalFox:
		return "🦊 A fox wandered in. Time for a short break!"
	default:
		return "🐱 Your cat is here. Time for a short break!"
	}
}
