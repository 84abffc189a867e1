package surface

import (
	"context"
	"strings"

	"pixel_pets/internal/domain/reminder"
)

// NotificationType is the kind of message pushed to presentation surfaces.
type NotificationType string

const (
	NotifyShowPet    NotificationType = "SHOW_PET"
	NotifyDismissPet NotificationType = "DISMISS_PET"
)

// Notification is broadcast to every surface that can host the pet.
type Notification struct {
	Type   NotificationType `json:"type"`
	Animal reminder.Animal  `json:"animal,omitempty"`
}

func ShowPet(animal reminder.Animal) Notification {
	return Notification{Type: NotifyShowPet, Animal: animal}
}

func DismissPet() Notification {
	return Notification{Type: NotifyDismissPet}
}

// Kind identifies the transport behind a surface.
type Kind string

const (
	KindPage     Kind = "page"
	KindTelegram Kind = "telegram"
)

// Surface is one open place that may render the pet.
type Surface struct {
	ID   string
	Kind Kind
	URL  string
}

// Privileged URL schemes never get the pet injected.
var privilegedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"moz-extension://",
	"about:",
}

// CanHostPet reports whether the surface may receive notifications.
func (s Surface) CanHostPet() bool {
	if s.ID == "" {
		return false
	}
	if s.Kind != KindPage {
		return true
	}
	if s.URL == "" {
		return false
	}
	lower := strings.ToLower(s.URL)
	for _, prefix := range privilegedPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// Provider enumerates the surfaces of one transport and delivers to them.
type Provider interface {
	Surfaces(ctx context.Context) ([]Surface, error)
	Deliver(ctx context.Context, target Surface, n Notification) error
}
