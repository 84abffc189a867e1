package reminder

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Animal selects which pet the surfaces display.
type Animal string

const (
	AnimalCat Animal = "cat"
	AnimalFox Animal = "fox"
)

// ParseAnimal maps user input to an Animal. An empty value selects the cat.
func ParseAnimal(s string) (Animal, error) {
	switch Animal(s) {
	case "":
		return AnimalCat, nil
	case AnimalCat, AnimalFox:
		return Animal(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAnimal, s)
	}
}

// Phase is the lifecycle position of the reminder. It is derived from the
// persisted State and the pending alarms, never stored.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseArmed   Phase = "armed"
	PhaseSnoozed Phase = "snoozed"
)

// State is the single persisted reminder record.
type State struct {
	IsActive        bool
	Animal          Animal
	IntervalSeconds float64
	// NextTriggerTime is advisory, for display only. The alarm source is
	// authoritative for when the pet actually shows up.
	NextTriggerTime time.Time
	// Snoozed marks that NextTriggerTime belongs to a snooze, so a restart
	// re-arms the snooze alarm rather than the recurring one.
	Snoozed bool
}

// DefaultState is the record used when nothing has been persisted yet.
func DefaultState() State {
	return State{Animal: AnimalCat}
}

// Interval returns the recurrence period, zero when none is configured.
func (s State) Interval() time.Duration {
	return secondsToDuration(s.IntervalSeconds)
}

type stateJSON struct {
	IsActive        bool    `json:"isActive"`
	Animal          Animal  `json:"animal"`
	IntervalSeconds float64 `json:"intervalSeconds"`
	NextTriggerTime int64   `json:"nextTriggerTime"`
	Snoozed         bool    `json:"snoozed,omitempty"`
}

// MarshalJSON encodes NextTriggerTime as Unix milliseconds, 0 when unset.
func (s State) MarshalJSON() ([]byte, error) {
	out := stateJSON{
		IsActive:        s.IsActive,
		Animal:          s.Animal,
		IntervalSeconds: s.IntervalSeconds,
		Snoozed:         s.Snoozed,
	}
	if !s.NextTriggerTime.IsZero() {
		out.NextTriggerTime = s.NextTriggerTime.UnixMilli()
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var in stateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.IsActive = in.IsActive
	s.Animal = in.Animal
	if s.Animal == "" {
		s.Animal = AnimalCat
	}
	s.IntervalSeconds = in.IntervalSeconds
	s.Snoozed = in.Snoozed
	s.NextTriggerTime = time.Time{}
	if in.NextTriggerTime > 0 {
		s.NextTriggerTime = time.UnixMilli(in.NextTriggerTime)
	}
	return nil
}

// MaxIntervalSeconds bounds intervals to what a time.Duration can hold.
const MaxIntervalSeconds = float64(math.MaxInt64 / int64(time.Second))

func secondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 || seconds >= MaxIntervalSeconds || math.IsNaN(seconds) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
