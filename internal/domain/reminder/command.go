package reminder

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidDuration = errors.New("reminder duration must be greater than zero")
	ErrUnknownAnimal   = errors.New("unknown animal")
	ErrUnknownCommand  = errors.New("unknown command type")
)

// CommandType enumerates the operations the coordinator accepts.
type CommandType string

const (
	CmdSetReminder         CommandType = "SET_REMINDER"
	CmdGetStatus           CommandType = "GET_STATUS"
	CmdAcknowledgeReminder CommandType = "ACKNOWLEDGE_REMINDER"
	CmdSnoozeReminder      CommandType = "SNOOZE_REMINDER"
	CmdCancelTimer         CommandType = "CANCEL_TIMER"
)

// CmdUnknown labels command types outside the accepted set.
const CmdUnknown CommandType = "unknown"

// Known reports whether t is one of the accepted command types.
func (t CommandType) Known() bool {
	switch t {
	case CmdSetReminder, CmdGetStatus, CmdAcknowledgeReminder, CmdSnoozeReminder, CmdCancelTimer:
		return true
	default:
		return false
	}
}

// Command is the wire shape sent by every client surface.
// SET_REMINDER takes Seconds, or Minutes when Seconds is absent.
type Command struct {
	Type    CommandType `json:"type"`
	Seconds float64     `json:"seconds,omitempty"`
	Minutes float64     `json:"minutes,omitempty"`
	Animal  string      `json:"animal,omitempty"`
}

// Duration resolves the requested reminder interval.
func (c Command) Duration() (time.Duration, error) {
	seconds := c.Seconds
	if seconds <= 0 && c.Minutes > 0 {
		seconds = c.Minutes * 60
	}
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, ErrInvalidDuration
	}
	if seconds >= MaxIntervalSeconds {
		return 0, fmt.Errorf("%w: %g seconds is out of range", ErrInvalidDuration, seconds)
	}
	return secondsToDuration(seconds), nil
}

// Validate checks the payload without touching any state.
func (c Command) Validate() error {
	switch c.Type {
	case CmdSetReminder:
		if _, err := c.Duration(); err != nil {
			return err
		}
		if _, err := ParseAnimal(c.Animal); err != nil {
			return err
		}
		return nil
	default:
		if c.Type.Known() {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
	}
}

// Result is returned for every command. State and Phase are only set for
// GET_STATUS.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	State   *State `json:"state,omitempty"`
	Phase   Phase  `json:"phase,omitempty"`
}

func Succeeded() Result {
	return Result{Success: true}
}

func Failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
