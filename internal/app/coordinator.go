package app

import (
	"context"
	"errors"
	"time"

	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/domain/surface"

	"github.com/sirupsen/logrus"
)

const (
	defaultSnoozeDuration = 300 * time.Second
	minAlarmPeriod        = time.Second
	eventQueueSize        = 16
)

// ErrCoordinatorStopped is returned by Execute once Run has exited.
var ErrCoordinatorStopped = errors.New("reminder coordinator is not running")

// CoordinatorObserver records coordinator activity.
type CoordinatorObserver interface {
	RecordCommand(commandType string, ok bool)
	RecordAlarm(name string)
	SetActive(active bool)
}

type event struct {
	cmd   reminder.Command
	alarm string
	reply chan reminder.Result
}

// Coordinator owns the reminder state. Commands and alarm fires are queued
// and handled one at a time by Run, each to completion including its
// persistence write. The record is re-read on every event.
type Coordinator struct {
	states   reminder.StateRepository
	timers   reminder.TimerSource
	notifier Notifier
	observer CoordinatorObserver
	logger   *logrus.Entry
	snooze   time.Duration
	now      func() time.Time

	events  chan event
	stopped chan struct{}

	// snoozeArmed is set while a snooze fire is expected. Only Run and
	// Restore touch it.
	snoozeArmed bool
}

type CoordinatorOption func(*Coordinator)

func WithSnoozeDuration(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.snooze = d
		}
	}
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func WithObserver(o CoordinatorObserver) CoordinatorOption {
	return func(c *Coordinator) { c.observer = o }
}

func NewCoordinator(
	states reminder.StateRepository,
	timers reminder.TimerSource,
	notifier Notifier,
	logger *logrus.Entry,
	opts ...CoordinatorOption,
) *Coordinator {
	c := &Coordinator{
		states:   states,
		timers:   timers,
		notifier: notifier,
		logger:   logger,
		snooze:   defaultSnoozeDuration,
		now:      time.Now,
		events:   make(chan event, eventQueueSize),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes queued events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.stopped)
	c.logger.Info("Reminder coordinator running")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Reminder coordinator stopped")
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

// Execute queues cmd and waits for its result.
func (c *Coordinator) Execute(ctx context.Context, cmd reminder.Command) (reminder.Result, error) {
	reply := make(chan reminder.Result, 1)
	select {
	case c.events <- event{cmd: cmd, reply: reply}:
	case <-c.stopped:
		return reminder.Result{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return reminder.Result{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res, nil
	case <-c.stopped:
		return reminder.Result{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return reminder.Result{}, ctx.Err()
	}
}

// HandleAlarm queues an alarm fire. It is the timer source's callback and
// does not wait for the fire to be processed.
func (c *Coordinator) HandleAlarm(name string) {
	select {
	case c.events <- event{alarm: name}:
	case <-c.stopped:
		c.logger.WithField("alarm", name).Warn("Alarm fired after coordinator stopped; ignoring")
	}
}

func (c *Coordinator) dispatch(ctx context.Context, ev event) {
	if ev.alarm != "" {
		c.onAlarm(ctx, ev.alarm)
		return
	}
	res := c.handle(ctx, ev.cmd)
	if c.observer != nil {
		label := ev.cmd.Type
		if !label.Known() {
			label = reminder.CmdUnknown
		}
		c.observer.RecordCommand(string(label), res.Success)
	}
	ev.reply <- res
}

func (c *Coordinator) handle(ctx context.Context, cmd reminder.Command) reminder.Result {
	log := c.logger.WithField("command", cmd.Type)
	if err := cmd.Validate(); err != nil {
		log.WithError(err).Warn("Rejected invalid command")
		return reminder.Failed(err)
	}

	switch cmd.Type {
	case reminder.CmdSetReminder:
		interval, _ := cmd.Duration()
		animal, _ := reminder.ParseAnimal(cmd.Animal)
		return c.setReminder(ctx, interval, animal)
	case reminder.CmdGetStatus:
		return c.getStatus(ctx)
	case reminder.CmdAcknowledgeReminder:
		return c.acknowledge(ctx)
	case reminder.CmdSnoozeReminder:
		return c.snoozeReminder(ctx)
	default: // reminder.CmdCancelTimer, Validate rejects anything else
		return c.cancelTimer(ctx)
	}
}

func (c *Coordinator) setReminder(ctx context.Context, interval time.Duration, animal reminder.Animal) reminder.Result {
	c.timers.Clear(reminder.AlarmRecurring)
	c.timers.Clear(reminder.AlarmSnooze)
	c.snoozeArmed = false

	period := max(interval, minAlarmPeriod)
	if err := c.timers.Arm(reminder.AlarmRecurring, period, period); err != nil {
		c.logger.WithError(err).Error("Failed to arm recurring alarm")
		return reminder.Failed(err)
	}

	state := reminder.State{
		IsActive:        true,
		Animal:          animal,
		IntervalSeconds: interval.Seconds(),
		NextTriggerTime: c.now().Add(interval),
	}
	if err := c.states.Save(ctx, state); err != nil {
		c.timers.Clear(reminder.AlarmRecurring)
		c.logger.WithError(err).Error("Failed to persist reminder state")
		return reminder.Failed(err)
	}
	c.setActive(true)

	c.logger.WithFields(logrus.Fields{
		"interval": interval.String(),
		"animal":   animal,
	}).Info("Reminder set")
	return reminder.Succeeded()
}

func (c *Coordinator) getStatus(ctx context.Context) reminder.Result {
	state, err := c.states.Load(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to load reminder state")
		return reminder.Failed(err)
	}
	res := reminder.Succeeded()
	res.State = &state
	res.Phase = c.phase(state)
	return res
}

func (c *Coordinator) phase(state reminder.State) reminder.Phase {
	switch {
	case c.timers.Pending(reminder.AlarmSnooze):
		return reminder.PhaseSnoozed
	case state.IsActive:
		return reminder.PhaseArmed
	default:
		return reminder.PhaseIdle
	}
}

func (c *Coordinator) acknowledge(ctx context.Context) reminder.Result {
	c.notifier.Broadcast(ctx, surface.DismissPet())
	c.logger.Info("Reminder acknowledged")
	return reminder.Succeeded()
}

func (c *Coordinator) snoozeReminder(ctx context.Context) reminder.Result {
	state, err := c.states.Load(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to load reminder state")
		return reminder.Failed(err)
	}

	c.notifier.Broadcast(ctx, surface.DismissPet())

	// isActive stays as is; the snooze fire re-creates the recurring alarm.
	c.timers.Clear(reminder.AlarmRecurring)
	if err := c.timers.Arm(reminder.AlarmSnooze, c.snooze, 0); err != nil {
		c.logger.WithError(err).Error("Failed to arm snooze alarm")
		return reminder.Failed(err)
	}
	c.snoozeArmed = true

	state.NextTriggerTime = c.now().Add(c.snooze)
	state.Snoozed = true
	if err := c.states.Save(ctx, state); err != nil {
		c.logger.WithError(err).Error("Failed to persist reminder state")
		return reminder.Failed(err)
	}

	c.logger.WithField("snooze", c.snooze.String()).Info("Reminder snoozed")
	return reminder.Succeeded()
}

func (c *Coordinator) cancelTimer(ctx context.Context) reminder.Result {
	c.timers.Clear(reminder.AlarmRecurring)
	c.timers.Clear(reminder.AlarmSnooze)
	c.snoozeArmed = false

	state, err := c.states.Load(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load reminder state; resetting to defaults")
		state = reminder.DefaultState()
	}
	// The animal is kept so clients can preselect it next time.
	state.IsActive = false
	state.IntervalSeconds = 0
	state.NextTriggerTime = time.Time{}
	state.Snoozed = false
	if err := c.states.Save(ctx, state); err != nil {
		c.logger.WithError(err).Error("Failed to persist reminder state")
		return reminder.Failed(err)
	}
	c.setActive(false)

	c.notifier.Broadcast(ctx, surface.DismissPet())
	c.logger.Info("Reminder cancelled")
	return reminder.Succeeded()
}

func (c *Coordinator) onAlarm(ctx context.Context, name string) {
	log := c.logger.WithField("alarm", name)
	if c.observer != nil {
		c.observer.RecordAlarm(name)
	}

	switch name {
	case reminder.AlarmRecurring:
		if !c.timers.Pending(reminder.AlarmRecurring) {
			log.Debug("Recurring alarm no longer armed; dropping fire")
			return
		}
	case reminder.AlarmSnooze:
		// A fire queued before a cancel, a new reminder or a fresh snooze
		// no longer matches what is armed.
		if !c.snoozeArmed || c.timers.Pending(reminder.AlarmSnooze) {
			log.Debug("Snooze alarm superseded; dropping fire")
			return
		}
		c.snoozeArmed = false
	default:
		log.Warn("Ignoring unknown alarm")
		return
	}

	state, err := c.states.Load(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load reminder state")
		return
	}

	interval := state.Interval()
	if name == reminder.AlarmSnooze && interval > 0 {
		period := max(interval, minAlarmPeriod)
		if err := c.timers.Arm(reminder.AlarmRecurring, period, period); err != nil {
			log.WithError(err).Error("Failed to re-arm recurring alarm after snooze")
		}
	}
	if interval > 0 {
		state.NextTriggerTime = c.now().Add(interval)
	}
	state.Snoozed = false
	if err := c.states.Save(ctx, state); err != nil {
		log.WithError(err).Error("Failed to persist reminder state")
	}

	report := c.notifier.Broadcast(ctx, surface.ShowPet(state.Animal))
	log.WithFields(logrus.Fields{
		"animal": state.Animal,
		"sent":   report.Sent,
		"failed": report.Failed,
	}).Info("Pet reminder triggered")
}

// Restore re-arms alarms from the persisted record after a restart, since
// alarms only live in process memory. Call it once at startup, before
// commands are accepted.
func (c *Coordinator) Restore(ctx context.Context) error {
	state, err := c.states.Load(ctx)
	if err != nil {
		return err
	}
	now := c.now()
	interval := state.Interval()

	switch {
	case state.Snoozed && !state.NextTriggerTime.IsZero():
		remaining := max(state.NextTriggerTime.Sub(now), minAlarmPeriod)
		c.snoozeArmed = true
		if err := c.timers.Arm(reminder.AlarmSnooze, remaining, 0); err != nil {
			c.snoozeArmed = false
			return err
		}
		c.logger.WithFields(logrus.Fields{
			"remaining": remaining.String(),
			"interval":  interval.String(),
		}).Info("Restored snoozed reminder")
	case state.IsActive && interval > 0:
		delay := interval
		if !state.NextTriggerTime.IsZero() {
			delay = state.NextTriggerTime.Sub(now)
		}
		delay = max(delay, minAlarmPeriod)
		if err := c.timers.Arm(reminder.AlarmRecurring, delay, max(interval, minAlarmPeriod)); err != nil {
			return err
		}
		c.logger.WithFields(logrus.Fields{
			"first_fire": delay.String(),
			"interval":   interval.String(),
			"animal":     state.Animal,
		}).Info("Restored recurring reminder")
	case !state.IsActive && state.NextTriggerTime.After(now):
		remaining := max(state.NextTriggerTime.Sub(now), minAlarmPeriod)
		c.snoozeArmed = true
		if err := c.timers.Arm(reminder.AlarmSnooze, remaining, 0); err != nil {
			c.snoozeArmed = false
			return err
		}
		c.logger.WithField("remaining", remaining.String()).Info("Restored pending snooze")
	default:
		c.logger.Info("No reminder to restore")
	}
	c.setActive(state.IsActive && interval > 0)
	return nil
}

func (c *Coordinator) setActive(active bool) {
	if c.observer != nil {
		c.observer.SetActive(active)
	}
}
