package endpoint

import (
	"github.com/fzft/go-mock-epoll/epoll"
	"math"
	"sync"
)

// EventFDMax is the largest value an eventfd counter can hold.
const EventFDMax = math.MaxUint64 - 1

// EventFD is an in-memory eventfd: a 64-bit counter that is readable while
// non-zero and writable while it can take at least one more increment.
type EventFD struct {
	Notifier
	id epoll.ID

	mu        sync.RWMutex
	counter   uint64
	semaphore bool
	closed    bool
}

// NewEventFD returns an eventfd holding initval. In semaphore mode each
// read takes one unit instead of the whole counter.
func NewEventFD(initval uint64, semaphore bool) *EventFD {
	return &EventFD{
		id:        epoll.NewID(),
		counter:   initval,
		semaphore: semaphore,
	}
}

func (e *EventFD) ID() epoll.ID {
	return e.id
}

func (e *EventFD) Readiness() epoll.Mask {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return 0
	}
	var m epoll.Mask
	if e.counter > 0 {
		m |= epoll.EventIn
	}
	if e.counter < EventFDMax {
		m |= epoll.EventOut
	}
	return m
}

// WriteValue adds v to the counter.
func (e *EventFD) WriteValue(v uint64) error {
	if v == math.MaxUint64 {
		return ErrInvalid
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if EventFDMax-e.counter < v {
		e.mu.Unlock()
		return ErrWouldBlock
	}
	e.counter += v
	e.mu.Unlock()

	e.Notify(e)
	return nil
}

// ReadValue takes the counter (or one unit in semaphore mode).
func (e *EventFD) ReadValue() (uint64, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return 0, ErrClosed
	}
	if e.counter == 0 {
		e.mu.Unlock()
		return 0, ErrWouldBlock
	}
	v := e.counter
	if e.semaphore {
		v = 1
	}
	e.counter -= v
	e.mu.Unlock()

	e.Notify(e)
	return v, nil
}

func (e *EventFD) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	e.Notify(e)
	return nil
}
