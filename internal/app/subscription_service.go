package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pixel_pets/internal/domain/subscriber"
	idb "pixel_pets/internal/infra/database"
)

// Application-level errors for the subscription service
var ErrNotAuthorized = errors.New("user is not allowed to control the reminder")
var ErrAlreadySubscribed = errors.New("chat is already subscribed")
var ErrNotSubscribed = errors.New("chat is not subscribed")

// SubscriptionService manages the Telegram chats that receive the pet.
type SubscriptionService struct {
	repo            subscriber.Repository
	adminTelegramID int64
}

func NewSubscriptionService(repo subscriber.Repository, adminID int64) *SubscriptionService {
	return &SubscriptionService{
		repo:            repo,
		adminTelegramID: adminID,
	}
}

// CanControl reports whether userID may issue reminder commands. Without a
// configured admin everyone may.
func (s *SubscriptionService) CanControl(userID int64) bool {
	return s.adminTelegramID == 0 || userID == s.adminTelegramID
}

// Subscribe registers the chat, re-activating it if it was unsubscribed.
func (s *SubscriptionService) Subscribe(ctx context.Context, chatID int64, title string) (*subscriber.Subscriber, error) {
	var titleValue sql.NullString
	if title != "" {
		titleValue = sql.NullString{String: title, Valid: true}
	}

	existing, err := s.repo.GetByChatID(ctx, chatID)
	if err == nil {
		if existing.IsActive {
			return existing, ErrAlreadySubscribed
		}
		existing.IsActive = true
		existing.Title = titleValue
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to reactivate subscriber: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, idb.ErrSubscriberNotFound) {
		return nil, fmt.Errorf("failed to check existing subscriber: %w", err)
	}

	sub := &subscriber.Subscriber{
		ChatID:   chatID,
		Title:    titleValue,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if errors.Is(err, idb.ErrDuplicateChatID) {
			return nil, ErrAlreadySubscribed
		}
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}
	return sub, nil
}

// Unsubscribe deactivates the chat. The row is kept.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	existing, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, idb.ErrSubscriberNotFound) {
			return nil, ErrNotSubscribed
		}
		return nil, fmt.Errorf("failed to get subscriber for removal: %w", err)
	}
	if !existing.IsActive {
		return existing, ErrNotSubscribed
	}

	existing.IsActive = false
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to deactivate subscriber: %w", err)
	}
	return existing, nil
}

func (s *SubscriptionService) ListActive(ctx context.Context) ([]*subscriber.Subscriber, error) {
	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	return subs, nil
}
