package subscriber

import (
	"database/sql"
	"time"
)

// Subscriber is a Telegram chat that receives pet notifications.
type Subscriber struct {
	ID        int64
	ChatID    int64
	Title     sql.NullString // Chat title or user name, optional
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName is the title when known, otherwise empty.
func (s *Subscriber) DisplayName() string {
	if s.Title.Valid {
		return s.Title.String
	}
	return ""
}
