package epoll

import "sync/atomic"

// ID identifies an endpoint for the lifetime of the process.
type ID uint64

var lastID atomic.Uint64

// NewID allocates an endpoint identity. IDs are never reused.
func NewID() ID {
	return ID(lastID.Add(1))
}

// Watcher is notified after an endpoint's readiness may have changed.
type Watcher interface {
	ReadinessChanged(ep Endpoint)
}

// Endpoint is a monitorable I/O object.
//
// Readiness must be idempotent and safe to call from any goroutine. After
// any mutation that could change readiness, the endpoint calls
// ReadinessChanged on every registered Watcher, without holding locks that
// Readiness needs.
type Endpoint interface {
	ID() ID
	Readiness() Mask
	EventRegister(w Watcher)
	EventUnregister(w Watcher)
}

// Event is one delivered record.
type Event struct {
	Events Mask
	Tag    uint64
}
