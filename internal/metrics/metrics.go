// Package metrics exposes engine activity as Prometheus metrics.
//
// Collectors implements engine.Metrics. Create one per registry and pass it
// to every engine that should report into that registry:
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.New(reg)
//	e, err := engine.New(network, engine.WithMetrics(m))
//
// All metric operations are thread-safe via Prometheus's internal locking,
// so one Collectors may serve engines running in parallel.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/procnet/internal/engine"
)

// Namespace for all metrics
const metricsNamespace = "procnet"

// Subsystem for interpreter metrics
const engineSubsystem = "engine"

// Collectors holds the Prometheus collectors for interpreter sessions.
//
// Labels: network is the network name; channel the channel name; kind is
// "write" or "read"; outcome is "progress" or "stalled".
type Collectors struct {
	// RoundsTotal counts scheduler rounds by network and outcome.
	RoundsTotal *prometheus.CounterVec

	// ProcsCompleted observes how many procs completed their tick per round.
	ProcsCompleted *prometheus.HistogramVec

	// ProcsBlocked tracks the number of blocked procs after the last round.
	ProcsBlocked *prometheus.GaugeVec

	// ChannelEventsTotal counts values crossing channel queues.
	ChannelEventsTotal *prometheus.CounterVec

	// DeadlocksTotal counts reported deadlocks.
	DeadlocksTotal *prometheus.CounterVec
}

var _ engine.Metrics = (*Collectors)(nil)

// New creates the collectors and registers them on reg.
// Returns an error if any collector is already registered on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		RoundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "rounds_total",
				Help:      "Total number of scheduler rounds by network and outcome",
			},
			[]string{"network", "outcome"},
		),
		ProcsCompleted: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "procs_completed",
				Help:      "Number of procs completing their tick in a round",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"network"},
		),
		ProcsBlocked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "procs_blocked",
				Help:      "Number of procs blocked at the end of the last round",
			},
			[]string{"network"},
		),
		ChannelEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "channel_events_total",
				Help:      "Total number of channel writes and reads by network, channel and kind",
			},
			[]string{"network", "channel", "kind"},
		),
		DeadlocksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "deadlocks_total",
				Help:      "Total number of deadlocks reported by network",
			},
			[]string{"network"},
		),
	}

	for _, col := range c.collectors() {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collectors) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.RoundsTotal,
		c.ProcsCompleted,
		c.ProcsBlocked,
		c.ChannelEventsTotal,
		c.DeadlocksTotal,
	}
}

// ObserveRound implements engine.Metrics.
func (c *Collectors) ObserveRound(network string, completed, blocked int, progress bool) {
	outcome := "stalled"
	if progress {
		outcome = "progress"
	}
	c.RoundsTotal.WithLabelValues(network, outcome).Inc()
	c.ProcsCompleted.WithLabelValues(network).Observe(float64(completed))
	c.ProcsBlocked.WithLabelValues(network).Set(float64(blocked))
}

// ObserveEvent implements engine.Metrics.
func (c *Collectors) ObserveEvent(network, channel string, kind engine.EventKind) {
	c.ChannelEventsTotal.WithLabelValues(network, channel, string(kind)).Inc()
}

// ObserveDeadlock implements engine.Metrics.
func (c *Collectors) ObserveDeadlock(network string) {
	c.DeadlocksTotal.WithLabelValues(network).Inc()
}

// WriteTextfile writes everything gathered by g to path in the Prometheus
// text exposition format, for node exporter textfile collection.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
