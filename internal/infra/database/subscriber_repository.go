package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"pixel_pets/internal/domain/subscriber"
)

// Custom errors
var ErrSubscriberNotFound = errors.New("subscriber not found")
var ErrDuplicateChatID = errors.New("subscriber with this chat ID already exists")

// SubscriberRepository persists Telegram chats that receive the pet. The
// queries run unchanged on Postgres and SQLite.
type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Create(ctx context.Context, s *subscriber.Subscriber) error {
	query := `INSERT INTO subscribers (chat_id, title, is_active, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query, s.ChatID, s.Title, s.IsActive, now, now).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateChatID
		}
		return fmt.Errorf("error creating subscriber: %w", err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return nil
}

func (r *SubscriberRepository) GetByChatID(ctx context.Context, chatID int64) (*subscriber.Subscriber, error) {
	query := `SELECT id, chat_id, title, is_active, created_at, updated_at
               FROM subscribers WHERE chat_id = $1`
	s := &subscriber.Subscriber{}
	err := r.db.QueryRowContext(ctx, query, chatID).Scan(&s.ID, &s.ChatID, &s.Title, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("error getting subscriber by chat ID: %w", err)
	}
	return s, nil
}

func (r *SubscriberRepository) Update(ctx context.Context, s *subscriber.Subscriber) error {
	query := `UPDATE subscribers
               SET title = $1, is_active = $2, updated_at = $3
               WHERE id = $4`

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, s.Title, s.IsActive, now, s.ID)
	if err != nil {
		return fmt.Errorf("error updating subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking subscriber update: %w", err)
	}
	if affected == 0 {
		return ErrSubscriberNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (r *SubscriberRepository) ListActive(ctx context.Context) ([]*subscriber.Subscriber, error) {
	query := `SELECT id, chat_id, title, is_active, created_at, updated_at
               FROM subscribers WHERE is_active = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("error listing active subscribers: %w", err)
	}
	defer rows.Close()

	subscribers := make([]*subscriber.Subscriber, 0)
	for rows.Next() {
		s := &subscriber.Subscriber{}
		if err := rows.Scan(&s.ID, &s.ChatID, &s.Title, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning active subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active subscribers: %w", err)
	}
	return subscribers, nil
}

// MemorySubscriberRepository is the in-process counterpart used with the
// memory driver.
type MemorySubscriberRepository struct {
	mu     sync.Mutex
	nextID int64
	byChat map[int64]subscriber.Subscriber
}

func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{byChat: make(map[int64]subscriber.Subscriber)}
}

func (r *MemorySubscriberRepository) Create(_ context.Context, s *subscriber.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byChat[s.ChatID]; ok {
		return ErrDuplicateChatID
	}
	r.nextID++
	now := time.Now().UTC()
	s.ID = r.nextID
	s.CreatedAt = now
	s.UpdatedAt = now
	r.byChat[s.ChatID] = *s
	return nil
}

func (r *MemorySubscriberRepository) GetByChatID(_ context.Context, chatID int64) (*subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byChat[chatID]
	if !ok {
		return nil, ErrSubscriberNotFound
	}
	return &s, nil
}

func (r *MemorySubscriberRepository) Update(_ context.Context, s *subscriber.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byChat[s.ChatID]
	if !ok || existing.ID != s.ID {
		return ErrSubscriberNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	r.byChat[s.ChatID] = *s
	return nil
}

func (r *MemorySubscriberRepository) ListActive(_ context.Context) ([]*subscriber.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subscriber.Subscriber, 0, len(r.byChat))
	for _, s := range r.byChat {
		if s.IsActive {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
