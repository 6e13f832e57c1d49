//go:build linux
// +build linux

package cmd

import (
	"github.com/fzft/go-mock-epoll/endpoint"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/probe"
	"go.uber.org/multierr"
)

// linuxKernel tracks every fd it hands out with one lazily started
// poller, so writes from other processes still reach the monitors.
type linuxKernel struct {
	poller *endpoint.Poller
	fds    []*endpoint.FD
}

func newKernelBackend() kernelBackend {
	return &linuxKernel{}
}

func (k *linuxKernel) track(fds ...*endpoint.FD) error {
	if k.poller == nil {
		p, err := endpoint.NewPoller(0)
		if err != nil {
			return multierr.Append(err, endpoint.CloseAll(fds...))
		}
		k.poller = p
	}
	for _, f := range fds {
		if err := k.poller.Track(f); err != nil {
			return multierr.Append(err, endpoint.CloseAll(fds...))
		}
	}
	k.fds = append(k.fds, fds...)
	return nil
}

func (k *linuxKernel) eventFD(initval uint) (epoll.Endpoint, error) {
	e, err := endpoint.NewKernelEventFD(initval, false)
	if err != nil {
		return nil, err
	}
	if err := k.track(e); err != nil {
		return nil, err
	}
	return e, nil
}

func (k *linuxKernel) socketPair() (epoll.Endpoint, epoll.Endpoint, error) {
	a, b, err := endpoint.NewKernelSocketPair()
	if err != nil {
		return nil, nil, err
	}
	if err := k.track(a, b); err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (k *linuxKernel) pipe() (epoll.Endpoint, epoll.Endpoint, error) {
	r, w, err := endpoint.NewKernelPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := k.track(r, w); err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

func (k *linuxKernel) probeEndpoints() (probe.Endpoints, error) {
	return probe.Kernel(), nil
}

func (k *linuxKernel) close() error {
	var err error
	if k.poller != nil {
		for _, f := range k.fds {
			if !f.Closed() {
				err = multierr.Append(err, k.poller.Untrack(f))
			}
		}
		err = multierr.Append(err, k.poller.Close())
		k.poller = nil
	}
	err = multierr.Append(err, endpoint.CloseAll(k.fds...))
	k.fds = nil
	return err
}
