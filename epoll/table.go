package epoll

import (
	"fmt"
	"go.uber.org/multierr"
	"sort"
	"sync"
	"time"
)

// Handle names a monitor inside a Table. Handles are never reused.
type Handle int

// Op is a control operation. Values match EPOLL_CTL_*.
type Op int

const (
	OpAdd    Op = 1
	OpDelete Op = 2
	OpModify Op = 3
)

func (op Op) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpModify:
		return "modify"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// Table is the handle based facade an embedding runtime calls into:
// create, control, wait and close.
type Table struct {
	opts []Option

	mu       sync.RWMutex
	next     Handle
	monitors map[Handle]*Monitor
}

// NewTable returns an empty table. opts are applied to every monitor it
// creates.
func NewTable(opts ...Option) *Table {
	return &Table{
		opts:     opts,
		monitors: make(map[Handle]*Monitor),
	}
}

// Create makes a new monitor and returns its handle.
func (t *Table) Create() Handle {
	m := NewMonitor(t.opts...)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.monitors[t.next] = m
	return t.next
}

// Monitor resolves h. Closed or unknown handles yield ErrClosed.
func (t *Table) Monitor(h Handle) (*Monitor, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.monitors[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ErrClosed)
	}
	return m, nil
}

// Control applies op to the registration of ep in monitor h. mask and tag
// are ignored for OpDelete.
func (t *Table) Control(h Handle, op Op, ep Endpoint, mask Mask, tag uint64) error {
	m, err := t.Monitor(h)
	if err != nil {
		return err
	}
	switch op {
	case OpAdd:
		return m.Add(ep, mask, tag)
	case OpModify:
		return m.Modify(ep, mask, tag)
	case OpDelete:
		return m.Delete(ep)
	default:
		return fmt.Errorf("control %s: %w", op, ErrInvalidArgument)
	}
}

// Wait waits on monitor h. A negative timeoutMs waits forever, zero polls.
func (t *Table) Wait(h Handle, capacity int, timeoutMs int) ([]Event, error) {
	m, err := t.Monitor(h)
	if err != nil {
		return nil, err
	}
	return m.Wait(capacity, Timeout(timeoutMs))
}

// Timeout converts an epoll_wait style millisecond timeout.
func Timeout(ms int) time.Duration {
	if ms < 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

// Close destroys monitor h.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	m, ok := t.monitors[h]
	delete(t.monitors, h)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("handle %d: %w", h, ErrClosed)
	}
	return m.Close()
}

// Handles lists live handles in creation order.
func (t *Table) Handles() []Handle {
	t.mu.RLock()
	handles := make([]Handle, 0, len(t.monitors))
	for h := range t.monitors {
		handles = append(handles, h)
	}
	t.mu.RUnlock()
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// Shutdown closes every live monitor.
func (t *Table) Shutdown() error {
	var err error
	for _, h := range t.Handles() {
		err = multierr.Append(err, t.Close(h))
	}
	return err
}
