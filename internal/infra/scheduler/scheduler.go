package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AlarmHandler receives the name of every alarm that fires.
type AlarmHandler func(name string)

// alarmSchedule fires once at first, then every period. A zero period makes
// it one-shot: cron parks entries whose next activation is the zero time.
type alarmSchedule struct {
	first  time.Time
	period time.Duration
}

func (s alarmSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	if s.period <= 0 {
		return time.Time{}
	}
	return t.Add(s.period)
}

type armedAlarm struct {
	id     cron.EntryID
	gen    uint64
	period time.Duration
}

// AlarmScheduler is a named-alarm timer source on top of a cron engine.
// Re-arming a name replaces the previous alarm; a fire from a replaced or
// cleared alarm that was already in flight is dropped.
type AlarmScheduler struct {
	cronEngine *cron.Cron
	logger     *logrus.Entry

	mu      sync.Mutex
	alarms  map[string]armedAlarm
	gen     uint64
	handler AlarmHandler
}

func NewAlarmScheduler(logger *logrus.Entry) *AlarmScheduler {
	return &AlarmScheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.Recover(cron.PrintfLogger(logger))),
		),
		logger: logger,
		alarms: make(map[string]armedAlarm),
	}
}

// OnAlarm sets the handler invoked on cron's goroutines when an alarm fires.
func (s *AlarmScheduler) OnAlarm(h AlarmHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *AlarmScheduler) Start() {
	s.logger.Info("Starting alarm scheduler")
	s.cronEngine.Start()
}

// Stop halts the engine and waits for running fires to return.
func (s *AlarmScheduler) Stop() {
	s.logger.Info("Stopping alarm scheduler...")
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Alarm scheduler gracefully stopped")
}

// Arm schedules name to fire after delay and then every period. A zero period
// makes it one-shot.
func (s *AlarmScheduler) Arm(name string, delay, period time.Duration) error {
	if delay <= 0 {
		return fmt.Errorf("alarm %q: delay must be positive, got %s", name, delay)
	}
	if period < 0 {
		return fmt.Errorf("alarm %q: period must not be negative, got %s", name, period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.alarms[name]; ok {
		s.cronEngine.Remove(prev.id)
	}

	s.gen++
	gen := s.gen
	schedule := alarmSchedule{first: time.Now().Add(delay), period: period}
	id := s.cronEngine.Schedule(schedule, cron.FuncJob(func() { s.fire(name, gen) }))
	s.alarms[name] = armedAlarm{id: id, gen: gen, period: period}

	s.logger.WithFields(logrus.Fields{
		"alarm":  name,
		"delay":  delay.String(),
		"period": period.String(),
	}).Debug("Alarm armed")
	return nil
}

// Clear removes the alarm and reports whether one was pending.
func (s *AlarmScheduler) Clear(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alarms[name]
	if !ok {
		return false
	}
	delete(s.alarms, name)
	s.cronEngine.Remove(a.id)
	s.logger.WithField("alarm", name).Debug("Alarm cleared")
	return true
}

func (s *AlarmScheduler) Pending(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[name]
	return ok
}

func (s *AlarmScheduler) fire(name string, gen uint64) {
	s.mu.Lock()
	a, ok := s.alarms[name]
	if !ok || a.gen != gen {
		s.mu.Unlock()
		s.logger.WithField("alarm", name).Debug("Dropping fire from superseded alarm")
		return
	}
	if a.period == 0 {
		delete(s.alarms, name)
		s.cronEngine.Remove(a.id)
	}
	handler := s.handler
	s.mu.Unlock()

	s.logger.WithField("alarm", name).Info("Alarm fired")
	if handler != nil {
		handler(name)
	}
}
