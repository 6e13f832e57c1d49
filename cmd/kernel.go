package cmd

import (
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/probe"
)

// kernelBackend creates endpoints backed by real descriptors where the
// platform has them.
type kernelBackend interface {
	eventFD(initval uint) (epoll.Endpoint, error)
	socketPair() (epoll.Endpoint, epoll.Endpoint, error)
	pipe() (epoll.Endpoint, epoll.Endpoint, error)
	probeEndpoints() (probe.Endpoints, error)
	close() error
}
