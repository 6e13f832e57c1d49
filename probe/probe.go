// Package probe runs end-to-end readiness scenarios against a monitor
// table and any set of endpoint implementations.
package probe

import (
	"errors"
	"fmt"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/fzft/go-mock-epoll/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"io"
	"runtime"
	"time"
)

var ErrMismatch = errors.New("unexpected events")

const (
	DefaultBlockTimeout   = 5 * time.Millisecond
	DefaultUnblockTimeout = 10 * time.Millisecond

	waitCapacity = 8
	peerPayload  = "abcde"
)

// Endpoints creates the endpoints a scenario runs on. Close releases
// everything it created.
type Endpoints interface {
	EventFD() (epoll.Endpoint, error)
	// SocketPair returns one end to monitor and a writer for its peer.
	SocketPair() (epoll.Endpoint, io.Writer, error)
	Close() error
}

// Result is what one scenario observed on its final wait.
type Result struct {
	Name    string
	Events  []epoll.Event
	Elapsed time.Duration
}

func (r Result) String() string {
	return fmt.Sprintf("%s: %v in %s", r.Name, r.Events, r.Elapsed.Round(time.Microsecond))
}

// BlockWithoutNotification registers a fresh eventfd, expects its initial
// writable edge, then expects a timed wait with no mutation to come back
// empty.
func BlockWithoutNotification(t *epoll.Table, eps Endpoints, timeout time.Duration) (Result, error) {
	res := Result{Name: "block-without-notification"}
	if timeout <= 0 {
		timeout = DefaultBlockTimeout
	}

	h := t.Create()
	defer t.Close(h)

	ep, err := eps.EventFD()
	if err != nil {
		return res, fmt.Errorf("%s: eventfd: %w", res.Name, err)
	}
	const tag = 1
	if err := t.Control(h, epoll.OpAdd, ep, epoll.EventIn|epoll.EventOut|epoll.EdgeTriggered, tag); err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}

	events, err := t.Wait(h, waitCapacity, 0)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}
	if err := expect(res.Name, events, epoll.Event{Events: epoll.EventOut, Tag: tag}); err != nil {
		return res, err
	}

	start := time.Now()
	res.Events, err = t.Wait(h, waitCapacity, int(timeout/time.Millisecond))
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}
	log.Logger.Debug("probe done", zap.String("scenario", res.Name), zap.Duration("elapsed", res.Elapsed))
	return res, expect(res.Name, res.Events)
}

// BlockThenUnblock registers one end of a socket pair, expects its initial
// writable edge, then has another goroutine write to the peer while the
// caller waits. The wait must report readable and writable together.
func BlockThenUnblock(t *epoll.Table, eps Endpoints, timeout time.Duration) (Result, error) {
	res := Result{Name: "block-then-unblock"}
	if timeout <= 0 {
		timeout = DefaultUnblockTimeout
	}

	h := t.Create()
	defer t.Close(h)

	ep, peer, err := eps.SocketPair()
	if err != nil {
		return res, fmt.Errorf("%s: socketpair: %w", res.Name, err)
	}
	const tag = 2
	if err := t.Control(h, epoll.OpAdd, ep, epoll.EventIn|epoll.EventOut|epoll.EdgeTriggered, tag); err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}

	events, err := t.Wait(h, waitCapacity, 0)
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}
	if err := expect(res.Name, events, epoll.Event{Events: epoll.EventOut, Tag: tag}); err != nil {
		return res, err
	}

	var g errgroup.Group
	g.Go(func() error {
		runtime.Gosched()
		_, err := peer.Write([]byte(peerPayload))
		return err
	})

	start := time.Now()
	res.Events, err = t.Wait(h, waitCapacity, int(timeout/time.Millisecond))
	res.Elapsed = time.Since(start)
	if werr := g.Wait(); werr != nil {
		return res, fmt.Errorf("%s: peer write: %w", res.Name, werr)
	}
	if err != nil {
		return res, fmt.Errorf("%s: %w", res.Name, err)
	}
	log.Logger.Debug("probe done", zap.String("scenario", res.Name), zap.Duration("elapsed", res.Elapsed))
	return res, expect(res.Name, res.Events, epoll.Event{Events: epoll.EventIn | epoll.EventOut, Tag: tag})
}

// Run runs both scenarios with default timeouts and closes eps.
func Run(t *epoll.Table, eps Endpoints) ([]Result, error) {
	var (
		results []Result
		err     error
	)
	for _, scenario := range []func(*epoll.Table, Endpoints, time.Duration) (Result, error){
		BlockWithoutNotification,
		BlockThenUnblock,
	} {
		res, serr := scenario(t, eps, 0)
		results = append(results, res)
		err = multierr.Append(err, serr)
	}
	return results, multierr.Append(err, eps.Close())
}

func expect(name string, got []epoll.Event, want ...epoll.Event) error {
	if len(got) != len(want) {
		return fmt.Errorf("%s: got %v, want %v: %w", name, got, want, ErrMismatch)
	}
	for i := range got {
		if got[i] != want[i] {
			return fmt.Errorf("%s: got %v, want %v: %w", name, got, want, ErrMismatch)
		}
	}
	return nil
}
