//go:build linux
// +build linux

package endpoint

import (
	"errors"
	"fmt"
	"github.com/fzft/go-mock-epoll/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"os"
	"sync"
	"unsafe"
)

// kernel edge-triggered, every readiness bit an FD can report
const trackEvents = unix.EPOLLIN | unix.EPOLLPRI | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET

type pipeSignal uint64

const (
	SignalStop pipeSignal = 1
)

var errSignalStopped = errors.New("poller stopped")

// Poller watches tracked FDs with a kernel epoll instance and notifies
// their watchers whenever the kernel reports an edge. It lets readiness
// changes made outside this process, or by raw syscalls, reach a Monitor.
type Poller struct {
	epollFd   int
	efd       int
	maxEvents int

	mu  sync.Mutex
	fds map[int]*FD

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewPoller starts the poll loop. maxEvents bounds the events taken per
// epoll_wait; non-positive means 64.
func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = 64
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create epoll", zap.Error(err))
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create eventfd", zap.Error(err))
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	// the signal eventfd is level-triggered so a missed stop is seen again
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}); err != nil {
		log.Logger.Error("Failed to add eventfd to epoll", zap.Error(err))
		unix.Close(efd)
		unix.Close(epfd)
		return nil, os.NewSyscallError("epoll_ctl", err)
	}

	p := &Poller{
		epollFd:   epfd,
		efd:       efd,
		maxEvents: maxEvents,
		fds:       make(map[int]*FD),
		done:      make(chan struct{}),
	}
	go p.poll()
	return p, nil
}

// Track starts watching f. The kernel forgets a descriptor once it is
// closed, so a closed FD needs no Untrack.
func (p *Poller) Track(f *FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.fds[f.fd]; ok && !old.Closed() {
		return fmt.Errorf("track fd %d: %w", f.fd, ErrInvalid)
	}
	ev := &unix.EpollEvent{Events: trackEvents, Fd: int32(f.fd)}
	if err := unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_ADD, f.fd, ev); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	p.fds[f.fd] = f
	return nil
}

// Untrack stops watching f.
func (p *Poller) Untrack(f *FD) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fds[f.fd]; !ok {
		return fmt.Errorf("untrack fd %d: %w", f.fd, ErrInvalid)
	}
	delete(p.fds, f.fd)
	if err := unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, f.fd, nil); err != nil {
		return os.NewSyscallError("epoll_ctl", err)
	}
	return nil
}

// Tracked returns the number of tracked FDs.
func (p *Poller) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fds)
}

// Close stops the poll loop and releases the kernel resources. Tracked
// FDs stay open.
func (p *Poller) Close() error {
	p.closeOnce.Do(func() {
		if err := p.sendSignal(SignalStop); err != nil {
			p.closeErr = err
			return
		}
		<-p.done
		p.closeErr = multierr.Combine(
			closeFd("eventfd", p.efd),
			closeFd("epoll", p.epollFd),
		)
	})
	return p.closeErr
}

func (p *Poller) poll() {
	events := make([]unix.EpollEvent, p.maxEvents)
	defer close(p.done)

	for {
		n, err := unix.EpollWait(p.epollFd, events, -1)
		if err == unix.EINTR {
			continue
		} else if err != nil {
			log.Logger.Error("epoll wait error", zap.Error(err))
			return
		}

		for i := 0; i < n; i++ {
			if err := p.processEvent(&events[i]); err != nil {
				if err != errSignalStopped {
					log.Logger.Error("Failed to process event", zap.Error(err))
				}
				return
			}
		}
	}
}

func (p *Poller) processEvent(ev *unix.EpollEvent) error {
	fd := int(ev.Fd)
	if fd == p.efd {
		return p.handleSignal()
	}

	p.mu.Lock()
	f, ok := p.fds[fd]
	p.mu.Unlock()
	if !ok {
		log.Logger.Debug("event for untracked fd", zap.Int("fd", fd))
		return nil
	}
	log.Logger.Debug("kernel edge", zap.Int("fd", fd), zap.Uint32("events", ev.Events))
	f.Notify(f)
	return nil
}

// handleSignal reads a signal from the signal eventfd
func (p *Poller) handleSignal() error {
	var buf uint64
	_, err := unix.Read(p.efd, (*(*[8]byte)(unsafe.Pointer(&buf)))[:])
	if err != nil {
		if err == unix.EAGAIN {
			return nil
		}
		log.Logger.Error("Failed to read from event fd", zap.Error(err))
		return nil
	}
	switch pipeSignal(buf) {
	case SignalStop:
		return errSignalStopped
	}
	return nil
}

func (p *Poller) sendSignal(sig pipeSignal) error {
	_, err := unix.Write(p.efd, (*(*[8]byte)(unsafe.Pointer(&sig)))[:])
	if err != nil {
		log.Logger.Error("Failed to write to event fd", zap.Error(err))
		return os.NewSyscallError("write", err)
	}
	return nil
}

func closeFd(name string, fd int) error {
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("close %s: %w", name, os.NewSyscallError("close", err))
	}
	return nil
}
