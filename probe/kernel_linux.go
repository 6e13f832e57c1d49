//go:build linux
// +build linux

package probe

import (
	"github.com/fzft/go-mock-epoll/endpoint"
	"github.com/fzft/go-mock-epoll/epoll"
	"io"
	"sync"
)

type kernel struct {
	mu  sync.Mutex
	fds []*endpoint.FD
}

// Kernel returns endpoints backed by real file descriptors.
func Kernel() Endpoints {
	return &kernel{}
}

func (k *kernel) keep(fds ...*endpoint.FD) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.fds = append(k.fds, fds...)
}

func (k *kernel) EventFD() (epoll.Endpoint, error) {
	e, err := endpoint.NewKernelEventFD(0, false)
	if err != nil {
		return nil, err
	}
	k.keep(e)
	return e, nil
}

func (k *kernel) SocketPair() (epoll.Endpoint, io.Writer, error) {
	a, b, err := endpoint.NewKernelSocketPair()
	if err != nil {
		return nil, nil, err
	}
	k.keep(a, b)
	return a, b, nil
}

func (k *kernel) Close() error {
	k.mu.Lock()
	fds := k.fds
	k.fds = nil
	k.mu.Unlock()
	return endpoint.CloseAll(fds...)
}
