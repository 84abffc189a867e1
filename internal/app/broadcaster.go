package app

import (
	"context"
	"sync"
	"time"

	"pixel_pets/internal/domain/surface"
	"pixel_pets/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Notifier broadcasts a notification to presentation surfaces.
type Notifier interface {
	Broadcast(ctx context.Context, n surface.Notification) BroadcastReport
}

// DeliveryObserver records per-surface delivery outcomes.
type DeliveryObserver interface {
	RecordDelivery(kind, notification, outcome string)
}

// BroadcastReport summarises one fan-out.
type BroadcastReport struct {
	Sent    int
	Failed  int
	Skipped int
}

// Broadcaster delivers notifications to every surface of every provider,
// best-effort. A failing surface never blocks or fails the others and is not
// retried.
type Broadcaster struct {
	providers []surface.Provider
	timeout   time.Duration
	observer  DeliveryObserver
	logger    *logrus.Entry
}

func NewBroadcaster(logger *logrus.Entry, timeout time.Duration, observer DeliveryObserver, providers ...surface.Provider) *Broadcaster {
	return &Broadcaster{
		providers: providers,
		timeout:   timeout,
		observer:  observer,
		logger:    logger,
	}
}

// AddProvider registers another source of surfaces. Call before serving.
func (b *Broadcaster) AddProvider(p surface.Provider) {
	b.providers = append(b.providers, p)
}

// Broadcast returns once every delivery attempt has finished or timed out.
func (b *Broadcaster) Broadcast(ctx context.Context, n surface.Notification) BroadcastReport {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		report BroadcastReport
	)
	count := func(kind surface.Kind, outcome string) {
		mu.Lock()
		switch outcome {
		case metrics.OutcomeSent:
			report.Sent++
		case metrics.OutcomeFailed:
			report.Failed++
		default:
			report.Skipped++
		}
		mu.Unlock()
		if b.observer != nil {
			b.observer.RecordDelivery(string(kind), string(n.Type), outcome)
		}
	}

	for _, p := range b.providers {
		targets, err := p.Surfaces(ctx)
		if err != nil {
			b.logger.WithError(err).Warn("Could not enumerate surfaces")
			continue
		}
		for _, target := range targets {
			if !target.CanHostPet() {
				b.logger.WithFields(logrus.Fields{"surface": target.ID, "url": target.URL}).Debug("Skipping surface that cannot host the pet")
				count(target.Kind, metrics.OutcomeSkipped)
				continue
			}
			wg.Add(1)
			go func(p surface.Provider, target surface.Surface) {
				defer wg.Done()
				dctx := ctx
				if b.timeout > 0 {
					var cancel context.CancelFunc
					dctx, cancel = context.WithTimeout(ctx, b.timeout)
					defer cancel()
				}
				if err := p.Deliver(dctx, target, n); err != nil {
					b.logger.WithError(err).WithFields(logrus.Fields{
						"surface": target.ID,
						"kind":    target.Kind,
						"url":     target.URL,
					}).Warn("Could not deliver notification to surface")
					count(target.Kind, metrics.OutcomeFailed)
					return
				}
				count(target.Kind, metrics.OutcomeSent)
			}(p, target)
		}
	}
	wg.Wait()

	b.logger.WithFields(logrus.Fields{
		"notification": n.Type,
		"sent":         report.Sent,
		"failed":       report.Failed,
		"skipped":      report.Skipped,
	}).Info("Broadcast finished")
	return report
}
