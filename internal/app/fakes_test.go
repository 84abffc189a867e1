package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pixel_pets/internal/domain/reminder"
	"pixel_pets/internal/domain/surface"
)

type armedAlarm struct {
	delay  time.Duration
	period time.Duration
}

// fakeTimers records alarms instead of scheduling them.
type fakeTimers struct {
	mu      sync.Mutex
	armed   map[string]armedAlarm
	cleared []string
	armErr  error
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{armed: make(map[string]armedAlarm)}
}

func (f *fakeTimers) Arm(name string, delay, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	f.armed[name] = armedAlarm{delay: delay, period: period}
	return nil
}

func (f *fakeTimers) Clear(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, name)
	_, ok := f.armed[name]
	delete(f.armed, name)
	return ok
}

func (f *fakeTimers) Pending(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.armed[name]
	return ok
}

func (f *fakeTimers) get(name string) (armedAlarm, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.armed[name]
	return a, ok
}

// fire behaves like the real scheduler: one-shot alarms are gone once fired.
func (f *fakeTimers) fire(name string, handler func(string)) {
	f.mu.Lock()
	if a, ok := f.armed[name]; ok && a.period == 0 {
		delete(f.armed, name)
	}
	f.mu.Unlock()
	handler(name)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []surface.Notification
}

func (f *fakeNotifier) Broadcast(_ context.Context, n surface.Notification) BroadcastReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return BroadcastReport{Sent: 1}
}

func (f *fakeNotifier) notifications() []surface.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]surface.Notification(nil), f.sent...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errStoreDown = errors.New("store down")

// failingStates wraps a repository and fails saves on demand.
type failingStates struct {
	reminder.StateRepository
	failSave bool
	failLoad bool
}

func (f *failingStates) Load(ctx context.Context) (reminder.State, error) {
	if f.failLoad {
		return reminder.State{}, errStoreDown
	}
	return f.StateRepository.Load(ctx)
}

func (f *failingStates) Save(ctx context.Context, s reminder.State) error {
	if f.failSave {
		return fmt.Errorf("save: %w", errStoreDown)
	}
	return f.StateRepository.Save(ctx, s)
}

type recordingObserver struct {
	mu       sync.Mutex
	commands map[string]int
	alarms   map[string]int
	active   bool
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{commands: make(map[string]int), alarms: make(map[string]int)}
}

func (o *recordingObserver) RecordCommand(commandType string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands[fmt.Sprintf("%s/%t", commandType, ok)]++
}

func (o *recordingObserver) RecordAlarm(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.alarms[name]++
}

func (o *recordingObserver) SetActive(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = active
}
