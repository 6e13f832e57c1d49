// Package metrics exposes prometheus collectors for the readiness engine.
// A nil *Collector is valid and records nothing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "epoll"

// Wait results.
const (
	WaitEvents  = "events"
	WaitEmpty   = "empty"
	WaitTimeout = "timeout"
	WaitClosed  = "closed"
)

type Collector struct {
	monitors  prometheus.Counter
	controls  *prometheus.CounterVec
	waits     *prometheus.CounterVec
	delivered prometheus.Counter
	edges     prometheus.Counter
	blocked   prometheus.Gauge
}

// New creates the collectors and registers them with reg when reg is not
// nil.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		monitors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitors_created_total",
			Help:      "The number of monitors created",
		}),
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_total",
			Help:      "The number of add/modify/delete operations by outcome",
		}, []string{"op", "result"}),
		waits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waits_total",
			Help:      "The number of completed wait calls by outcome",
		}, []string{"result"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "The number of event records returned to callers",
		}),
		edges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "The number of readiness transitions that armed a registration",
		}),
		blocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiters_blocked",
			Help:      "The number of callers currently blocked in wait",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.monitors, c.controls, c.waits, c.delivered, c.edges, c.blocked)
	}
	return c
}

func (c *Collector) MonitorCreated() {
	if c == nil {
		return
	}
	c.monitors.Inc()
}

func (c *Collector) Control(op, result string) {
	if c == nil {
		return
	}
	c.controls.WithLabelValues(op, result).Inc()
}

// Wait records a finished wait and the number of records it returned.
func (c *Collector) Wait(result string, delivered int) {
	if c == nil {
		return
	}
	c.waits.WithLabelValues(result).Inc()
	c.delivered.Add(float64(delivered))
}

func (c *Collector) Edge() {
	if c == nil {
		return
	}
	c.edges.Inc()
}

func (c *Collector) Blocked(delta int) {
	if c == nil {
		return
	}
	c.blocked.Add(float64(delta))
}
