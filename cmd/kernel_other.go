//go:build !linux
// +build !linux

package cmd

import (
	"errors"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/probe"
)

var errNoKernel = errors.New("kernel endpoints need linux")

type noKernel struct{}

func newKernelBackend() kernelBackend {
	return noKernel{}
}

func (noKernel) eventFD(uint) (epoll.Endpoint, error) {
	return nil, errNoKernel
}

func (noKernel) socketPair() (epoll.Endpoint, epoll.Endpoint, error) {
	return nil, nil, errNoKernel
}

func (noKernel) pipe() (epoll.Endpoint, epoll.Endpoint, error) {
	return nil, nil, errNoKernel
}

func (noKernel) probeEndpoints() (probe.Endpoints, error) {
	return nil, errNoKernel
}

func (noKernel) close() error {
	return nil
}
