package epoll

import (
	"code.cloudfoundry.org/clock"
	"errors"
	"fmt"
	"github.com/eapache/queue"
	"github.com/fzft/go-mock-epoll/log"
	"github.com/fzft/go-mock-epoll/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the time source used for wait deadlines.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(m *Monitor) { m.metrics = c }
}

// Monitor tracks a set of registrations and the callers waiting on them.
// It plays the role of an epoll instance.
type Monitor struct {
	id      string
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Collector

	// mu guards everything below. Endpoint readiness is queried with mu
	// held, so endpoints must not call back into the monitor while holding
	// their own locks.
	mu       sync.Mutex
	registry *Registry
	ready    *queue.Queue // of *interest, in arming order
	waiters  *waitQueue
	closed   bool
}

func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		id:       uuid.NewString(),
		clock:    clock.NewClock(),
		registry: NewRegistry(),
		ready:    queue.New(),
		waiters:  newWaitQueue(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.Logger
	}
	m.logger = m.logger.With(zap.String("monitor", m.id))
	m.metrics.MonitorCreated()
	return m
}

// ID returns the monitor's instance id.
func (m *Monitor) ID() string {
	return m.id
}

// Len returns the number of registrations.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Len()
}

// Blocked returns the number of callers currently suspended in Wait.
func (m *Monitor) Blocked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.len()
}

func (m *Monitor) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Add registers ep with mask and tag. Bits already set on ep count as an
// edge, so the next Wait reports them.
func (m *Monitor) Add(ep Endpoint, mask Mask, tag uint64) (err error) {
	defer func() { m.metrics.Control("add", result(err)) }()
	if err := checkControl(ep, mask); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	i, err := m.registry.add(ep, mask, tag)
	if err != nil {
		return err
	}
	ep.EventRegister(m)
	m.evaluate(i)
	m.dispatch()

	m.logger.Debug("add",
		zap.Uint64("endpoint", uint64(ep.ID())),
		zap.Stringer("mask", mask),
		zap.Uint64("tag", tag))
	return nil
}

// Modify replaces mask and tag. The edge history is reset to the current
// level and any undelivered edge is dropped: changing the mask is not an
// edge.
func (m *Monitor) Modify(ep Endpoint, mask Mask, tag uint64) (err error) {
	defer func() { m.metrics.Control("modify", result(err)) }()
	if err := checkControl(ep, mask); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	i, err := m.registry.modify(ep.ID(), mask, tag)
	if err != nil {
		return err
	}
	i.disabled = false
	i.armed = false
	level := i.ep.Readiness()
	i.edge.seed(level)
	if !mask.EdgeTriggered() && level&i.events() != 0 {
		m.arm(i)
		m.dispatch()
	}

	m.logger.Debug("modify",
		zap.Uint64("endpoint", uint64(ep.ID())),
		zap.Stringer("mask", mask),
		zap.Uint64("tag", tag))
	return nil
}

// Delete removes the registration for ep along with its edge history.
func (m *Monitor) Delete(ep Endpoint) (err error) {
	defer func() { m.metrics.Control("delete", result(err)) }()
	if ep == nil {
		return fmt.Errorf("delete: nil endpoint: %w", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	i, err := m.registry.remove(ep.ID())
	if err != nil {
		return err
	}
	i.ep.EventUnregister(m)

	m.logger.Debug("delete", zap.Uint64("endpoint", uint64(ep.ID())))
	return nil
}

func checkControl(ep Endpoint, mask Mask) error {
	if ep == nil {
		return fmt.Errorf("nil endpoint: %w", ErrInvalidArgument)
	}
	if !mask.Valid() {
		return fmt.Errorf("mask %#x: %w", uint32(mask), ErrInvalidArgument)
	}
	return nil
}

// Wait returns up to capacity events.
//
// A zero timeout polls once without blocking. Otherwise events already
// available are returned at once; if there are none the caller blocks
// until an edge is pushed, the timeout elapses (a negative timeout never
// elapses) or the monitor is closed. Timing out is not an error: the
// result is simply empty.
func (m *Monitor) Wait(capacity int, timeout time.Duration) ([]Event, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("wait capacity %d: %w", capacity, ErrInvalidArgument)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.report(nil, ErrClosed, false)
	}
	events := m.poll(capacity)
	if len(events) > 0 || timeout == 0 {
		m.mu.Unlock()
		return m.report(events, nil, false)
	}
	w := m.waiters.enqueue(capacity)
	m.metrics.Blocked(1)
	m.mu.Unlock()
	defer m.metrics.Blocked(-1)

	m.logger.Debug("wait blocked", zap.Duration("timeout", timeout))

	var expired <-chan time.Time
	if timeout > 0 {
		timer := m.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C()
	}

	select {
	case res := <-w.result:
		return m.report(res.events, res.err, true)
	case <-expired:
	}

	m.mu.Lock()
	if !m.waiters.expire(w) {
		// released at the same time the deadline fired
		m.mu.Unlock()
		res := <-w.result
		return m.report(res.events, res.err, true)
	}
	// Endpoints that never push are still seen before reporting a timeout.
	events = m.poll(capacity)
	m.mu.Unlock()
	return m.report(events, nil, true)
}

func (m *Monitor) report(events []Event, err error, blocked bool) ([]Event, error) {
	var res string
	switch {
	case errors.Is(err, ErrClosed):
		res = metrics.WaitClosed
	case len(events) > 0:
		res = metrics.WaitEvents
	case blocked:
		res = metrics.WaitTimeout
	default:
		res = metrics.WaitEmpty
	}
	m.metrics.Wait(res, len(events))
	if blocked {
		m.logger.Debug("wait released", zap.String("result", res), zap.Int("events", len(events)))
	}
	return events, err
}

// ReadinessChanged re-evaluates ep and wakes the first blocked caller if
// it produced an edge.
func (m *Monitor) ReadinessChanged(ep Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	i, ok := m.registry.lookup(ep.ID())
	if !ok {
		return
	}
	m.evaluate(i)
	m.dispatch()
}

// Close releases every registration and fails blocked callers with
// ErrClosed.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	for _, i := range m.registry.clear() {
		i.ep.EventUnregister(m)
	}
	m.ready = queue.New()
	n := m.waiters.releaseAll(ErrClosed)
	m.mu.Unlock()

	m.logger.Debug("closed", zap.Int("released", n))
	return nil
}

// poll is the immediate pass: query every registration, then collect.
// Edges the caller has no room for go to callers already blocked.
func (m *Monitor) poll(capacity int) []Event {
	m.registry.each(m.evaluate)
	events := m.collect(capacity)
	m.dispatch()
	return events
}

// evaluate queries the oracle for i and arms it when an edge occurred
// (edge-triggered) or the level is set (level-triggered).
func (m *Monitor) evaluate(i *interest) {
	if i.disabled {
		return
	}
	level := i.ep.Readiness()
	edges := i.edge.diff(level, i.events())
	if i.mask.EdgeTriggered() {
		if edges == 0 {
			return
		}
		m.metrics.Edge()
	} else if level&i.events() == 0 {
		return
	}
	m.arm(i)
}

func (m *Monitor) arm(i *interest) {
	i.armed = true
	if !i.queued {
		i.queued = true
		m.ready.Add(i)
	}
}

// collect pops armed registrations in arming order and turns them into at
// most capacity events. Each record carries the registration's current
// level, so bits that changed together are reported together. A
// registration whose level dropped to zero before delivery is discarded.
func (m *Monitor) collect(capacity int) []Event {
	var events []Event
	for n := m.ready.Length(); n > 0 && len(events) < capacity; n-- {
		i := m.ready.Remove().(*interest)
		i.queued = false
		if !i.armed || i.removed || i.disabled {
			continue
		}
		i.armed = false

		level := i.ep.Readiness()
		i.edge.seed(level)
		got := level & i.events()
		if got == 0 {
			continue
		}
		events = append(events, Event{Events: got, Tag: i.tag})

		switch {
		case i.mask.OneShot():
			i.disabled = true
		case !i.mask.EdgeTriggered():
			// level-triggered stays ready until the level clears
			m.arm(i)
		}
	}
	return events
}

// dispatch hands ready events to blocked callers, first blocked first.
func (m *Monitor) dispatch() {
	for m.ready.Length() > 0 {
		w, ok := m.waiters.front()
		if !ok {
			return
		}
		events := m.collect(w.capacity)
		if len(events) == 0 {
			return
		}
		m.waiters.release(w, events, nil)
	}
}
