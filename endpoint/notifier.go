// Package endpoint provides monitorable I/O objects for the epoll engine:
// in-memory eventfds, socket pairs and pipes, and on Linux wrappers around
// real file descriptors.
package endpoint

import (
	"errors"
	"github.com/fzft/go-mock-epoll/epoll"
	"sync"
)

var (
	ErrWouldBlock = errors.New("operation would block")
	ErrClosed     = errors.New("endpoint closed")
	ErrPipe       = errors.New("broken pipe")
	ErrInvalid    = errors.New("invalid argument")
)

// Notifier is the watcher set an endpoint embeds. Endpoints call Notify
// after releasing their own locks.
type Notifier struct {
	mu       sync.Mutex
	watchers []epoll.Watcher
}

func (n *Notifier) EventRegister(w epoll.Watcher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, x := range n.watchers {
		if x == w {
			return
		}
	}
	n.watchers = append(n.watchers, w)
}

func (n *Notifier) EventUnregister(w epoll.Watcher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, x := range n.watchers {
		if x == w {
			n.watchers = append(n.watchers[:i], n.watchers[i+1:]...)
			return
		}
	}
}

// Notify tells every watcher, in registration order, that ep may have
// changed.
func (n *Notifier) Notify(ep epoll.Endpoint) {
	n.mu.Lock()
	watchers := make([]epoll.Watcher, len(n.watchers))
	copy(watchers, n.watchers)
	n.mu.Unlock()

	for _, w := range watchers {
		w.ReadinessChanged(ep)
	}
}

// Watchers returns the number of registered watchers.
func (n *Notifier) Watchers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers)
}
