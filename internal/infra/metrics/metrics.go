package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// PrometheusObserver exports reminder and broadcast metrics.
// A nil observer records nothing.
type PrometheusObserver struct {
	commands   *prometheus.CounterVec
	alarms     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	active     prometheus.Gauge
}

// NewPrometheusObserver registers the collectors on reg, reusing collectors
// that are already registered.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "pixel_pets"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Reminder commands handled, by type and outcome.",
		}, []string{"type", "outcome"}),
		alarms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarms_fired_total",
			Help:      "Alarm fires processed by the coordinator.",
		}, []string{"alarm"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification deliveries to presentation surfaces.",
		}, []string{"kind", "notification", "outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reminder_active",
			Help:      "1 while a recurring reminder is armed.",
		}),
	}

	if err := register(reg, &o.commands, &o.alarms, &o.deliveries); err != nil {
		return nil, err
	}
	if err := reg.Register(o.active); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register reminder metric: %w", err)
		}
		o.active = are.ExistingCollector.(prometheus.Gauge)
	}
	return o, nil
}

func register(reg prometheus.Registerer, vecs ...**prometheus.CounterVec) error {
	for _, vec := range vecs {
		if err := reg.Register(*vec); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return fmt.Errorf("register reminder metric: %w", err)
			}
			*vec = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return nil
}

func (o *PrometheusObserver) RecordCommand(commandType string, ok bool) {
	if o == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	o.commands.WithLabelValues(commandType, outcome).Inc()
}

func (o *PrometheusObserver) RecordAlarm(name string) {
	if o == nil {
		return
	}
	o.alarms.WithLabelValues(name).Inc()
}

func (o *PrometheusObserver) RecordDelivery(kind, notification, outcome string) {
	if o == nil {
		return
	}
	o.deliveries.WithLabelValues(kind, notification, outcome).Inc()
}

func (o *PrometheusObserver) SetActive(active bool) {
	if o == nil {
		return
	}
	if active {
		o.active.Set(1)
		return
	}
	o.active.Set(0)
}
