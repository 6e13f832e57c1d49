//go:build linux
// +build linux

package endpoint

import (
	"encoding/binary"
	"errors"
	"github.com/fzft/go-mock-epoll/epoll"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
	"io"
	"os"
	"sync/atomic"
)

const pollEvents = unix.POLLIN | unix.POLLPRI | unix.POLLOUT | unix.POLLRDHUP

// FD wraps a real non-blocking file descriptor. Readiness is whatever the
// kernel reports for a zero-timeout poll(2). Reads and writes made through
// the wrapper notify both this end and its peer; changes made behind its
// back need a Poller.
type FD struct {
	Notifier
	id     epoll.ID
	fd     int
	name   string
	peer   *FD
	closed atomic.Bool
}

func newFD(fd int, name string) *FD {
	return &FD{id: epoll.NewID(), fd: fd, name: name}
}

// NewKernelEventFD creates a non-blocking eventfd(2).
func NewKernelEventFD(initval uint, semaphore bool) (*FD, error) {
	flags := unix.EFD_NONBLOCK | unix.EFD_CLOEXEC
	if semaphore {
		flags |= unix.EFD_SEMAPHORE
	}
	fd, err := unix.Eventfd(initval, flags)
	if err != nil {
		return nil, os.NewSyscallError("eventfd", err)
	}
	return newFD(fd, "eventfd"), nil
}

// NewKernelSocketPair creates a connected AF_UNIX stream pair.
func NewKernelSocketPair() (*FD, *FD, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, os.NewSyscallError("socketpair", err)
	}
	a, b := newFD(fds[0], "socket"), newFD(fds[1], "socket")
	a.peer, b.peer = b, a
	return a, b, nil
}

// NewKernelPipe creates a non-blocking pipe and returns its read and write
// ends.
func NewKernelPipe() (*FD, *FD, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, nil, os.NewSyscallError("pipe2", err)
	}
	r, w := newFD(p[0], "pipe"), newFD(p[1], "pipe")
	r.peer, w.peer = w, r
	return r, w, nil
}

func (f *FD) ID() epoll.ID {
	return f.id
}

// Fd returns the raw descriptor.
func (f *FD) Fd() int {
	return f.fd
}

// Closed reports whether Close was called.
func (f *FD) Closed() bool {
	return f.closed.Load()
}

func (f *FD) String() string {
	return f.name
}

func (f *FD) Readiness() epoll.Mask {
	if f.closed.Load() {
		return 0
	}
	fds := []unix.PollFd{{Fd: int32(f.fd), Events: pollEvents}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil || n == 0 {
			return 0
		}
		break
	}
	// poll(2) and epoll(7) share bit values for these events
	return epoll.Mask(uint16(fds[0].Revents)) & (epoll.EventIn | epoll.EventPri | epoll.EventOut |
		epoll.EventErr | epoll.EventHup | epoll.EventRdHup)
}

func (f *FD) Write(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.Write(f.fd, p)
	if err != nil {
		return 0, mapErrno("write", err)
	}
	f.notifyPair()
	return n, nil
}

func (f *FD) Read(p []byte) (int, error) {
	if f.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.Read(f.fd, p)
	if err != nil {
		return 0, mapErrno("read", err)
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	f.notifyPair()
	return n, nil
}

// WriteValue writes an eventfd counter increment.
func (f *FD) WriteValue(v uint64) error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], v)
	_, err := f.Write(buf[:])
	return err
}

// ReadValue reads an eventfd counter.
func (f *FD) ReadValue() (uint64, error) {
	var buf [8]byte
	if _, err := f.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (f *FD) Close() error {
	if f.closed.Swap(true) {
		return ErrClosed
	}
	err := unix.Close(f.fd)
	if f.peer != nil {
		f.peer.Notify(f.peer)
	}
	if err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

func (f *FD) notifyPair() {
	if f.peer != nil {
		f.peer.Notify(f.peer)
	}
	f.Notify(f)
}

// CloseAll closes every fd and reports all failures.
func CloseAll(fds ...*FD) error {
	var err error
	for _, f := range fds {
		if f == nil {
			continue
		}
		if cerr := f.Close(); cerr != nil && !errors.Is(cerr, ErrClosed) {
			err = multierr.Append(err, cerr)
		}
	}
	return err
}

func mapErrno(op string, err error) error {
	switch err {
	case unix.EAGAIN:
		return ErrWouldBlock
	case unix.EPIPE:
		return ErrPipe
	case unix.EBADF:
		return ErrClosed
	default:
		return os.NewSyscallError(op, err)
	}
}
