package reminder

import (
	"context"
	"time"
)

// Well-known alarm names.
const (
	AlarmRecurring = "petReminder"
	AlarmSnooze    = "petSnooze"
)

// StateRepository persists the single ReminderState record.
type StateRepository interface {
	// Load returns DefaultState when nothing has been stored yet.
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// TimerSource fires named alarms after a delay, optionally repeating.
type TimerSource interface {
	// Arm replaces any alarm with the same name. A zero period makes it one-shot.
	Arm(name string, delay, period time.Duration) error
	// Clear reports whether an alarm was removed. Clearing an absent alarm is not an error.
	Clear(name string) bool
	Pending(name string) bool
}
