package endpoint

import (
	"github.com/fzft/go-mock-epoll/epoll"
	"io"
	"sync"
)

// DefaultSocketBuffer is the receive buffer size of each socket end.
const DefaultSocketBuffer = 212992

// pairState is shared by both ends of a pair so readiness of one end can
// look at the other under one lock.
type pairState struct {
	mu sync.RWMutex
}

// Socket is one end of an in-memory connected stream socket pair.
type Socket struct {
	Notifier
	id    epoll.ID
	state *pairState
	peer  *Socket

	// guarded by state.mu
	rx        []byte
	capacity  int
	shutWrite bool
	closed    bool
}

// NewSocketPair returns two connected ends, each able to buffer capacity
// bytes. A non-positive capacity means DefaultSocketBuffer.
func NewSocketPair(capacity int) (*Socket, *Socket) {
	if capacity <= 0 {
		capacity = DefaultSocketBuffer
	}
	state := &pairState{}
	a := &Socket{id: epoll.NewID(), state: state, capacity: capacity}
	b := &Socket{id: epoll.NewID(), state: state, capacity: capacity}
	a.peer, b.peer = b, a
	return a, b
}

func (s *Socket) ID() epoll.ID {
	return s.id
}

// Peer returns the other end.
func (s *Socket) Peer() *Socket {
	return s.peer
}

func (s *Socket) Readiness() epoll.Mask {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	if s.closed {
		return 0
	}

	var m epoll.Mask
	if len(s.rx) > 0 {
		m |= epoll.EventIn | epoll.EventRdNorm
	}
	switch {
	case s.peer.closed:
		m |= epoll.EventIn | epoll.EventRdNorm | epoll.EventRdHup | epoll.EventHup
	case s.peer.shutWrite:
		m |= epoll.EventIn | epoll.EventRdNorm | epoll.EventRdHup
	}
	if !s.shutWrite && (s.peer.closed || len(s.peer.rx) < s.peer.capacity) {
		m |= epoll.EventOut | epoll.EventWrNorm
	}
	return m
}

// Write copies as much of p as fits into the peer's receive buffer.
func (s *Socket) Write(p []byte) (int, error) {
	s.state.mu.Lock()
	switch {
	case s.closed:
		s.state.mu.Unlock()
		return 0, ErrClosed
	case s.shutWrite || s.peer.closed:
		s.state.mu.Unlock()
		return 0, ErrPipe
	}
	space := s.peer.capacity - len(s.peer.rx)
	if space == 0 {
		s.state.mu.Unlock()
		return 0, ErrWouldBlock
	}
	n := min(space, len(p))
	s.peer.rx = append(s.peer.rx, p[:n]...)
	s.state.mu.Unlock()

	s.peer.Notify(s.peer)
	s.Notify(s)
	return n, nil
}

// Read drains up to len(p) bytes. It returns io.EOF once the peer stopped
// writing and the buffer is empty.
func (s *Socket) Read(p []byte) (int, error) {
	s.state.mu.Lock()
	if s.closed {
		s.state.mu.Unlock()
		return 0, ErrClosed
	}
	if len(s.rx) == 0 {
		eof := s.peer.closed || s.peer.shutWrite
		s.state.mu.Unlock()
		if eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	n := copy(p, s.rx)
	s.rx = s.rx[n:]
	s.state.mu.Unlock()

	s.Notify(s)
	s.peer.Notify(s.peer)
	return n, nil
}

// CloseWrite shuts down the sending direction.
func (s *Socket) CloseWrite() error {
	s.state.mu.Lock()
	if s.closed {
		s.state.mu.Unlock()
		return ErrClosed
	}
	s.shutWrite = true
	s.state.mu.Unlock()

	s.peer.Notify(s.peer)
	s.Notify(s)
	return nil
}

func (s *Socket) Close() error {
	s.state.mu.Lock()
	if s.closed {
		s.state.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	s.rx = nil
	s.state.mu.Unlock()

	s.peer.Notify(s.peer)
	return nil
}
