package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"pixel_pets/internal/domain/reminder"
)

// StateRepository stores the reminder record as JSON under a single key of
// the kv_store table. The queries run unchanged on Postgres and SQLite.
type StateRepository struct {
	db  *sql.DB
	key string
}

func NewStateRepository(db *sql.DB, key string) *StateRepository {
	return &StateRepository{db: db, key: key}
}

func (r *StateRepository) Load(ctx context.Context) (reminder.State, error) {
	query := `SELECT value FROM kv_store WHERE key = $1`

	var raw string
	err := r.db.QueryRowContext(ctx, query, r.key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reminder.DefaultState(), nil
		}
		return reminder.State{}, fmt.Errorf("error loading reminder state %q: %w", r.key, err)
	}

	state := reminder.DefaultState()
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return reminder.State{}, fmt.Errorf("error decoding reminder state %q: %w", r.key, err)
	}
	return state, nil
}

func (r *StateRepository) Save(ctx context.Context, state reminder.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("error encoding reminder state: %w", err)
	}

	query := `INSERT INTO kv_store (key, value, updated_at)
               VALUES ($1, $2, $3)
               ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, query, r.key, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("error saving reminder state %q: %w", r.key, err)
	}
	return nil
}

// MemoryStateRepository keeps the record in process memory. The state is
// lost on restart; used for the memory driver and tests.
type MemoryStateRepository struct {
	mu    sync.Mutex
	state *reminder.State
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{}
}

func (r *MemoryStateRepository) Load(_ context.Context) (reminder.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return reminder.DefaultState(), nil
	}
	return *r.state, nil
}

func (r *MemoryStateRepository) Save(_ context.Context, state reminder.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = &state
	return nil
}
