package endpoint

import (
	"github.com/fzft/go-mock-epoll/epoll"
	"io"
	"sync"
)

// DefaultPipeBuffer is the pipe capacity used when none is given.
const DefaultPipeBuffer = 65536

type pipeBuffer struct {
	mu           sync.RWMutex
	data         []byte
	capacity     int
	readerClosed bool
	writerClosed bool
}

// PipeReader is the read end of an in-memory pipe.
type PipeReader struct {
	Notifier
	id     epoll.ID
	buf    *pipeBuffer
	writer *PipeWriter
}

// PipeWriter is the write end of an in-memory pipe.
type PipeWriter struct {
	Notifier
	id     epoll.ID
	buf    *pipeBuffer
	reader *PipeReader
}

// NewPipe returns connected pipe ends. A non-positive capacity means
// DefaultPipeBuffer.
func NewPipe(capacity int) (*PipeReader, *PipeWriter) {
	if capacity <= 0 {
		capacity = DefaultPipeBuffer
	}
	buf := &pipeBuffer{capacity: capacity}
	r := &PipeReader{id: epoll.NewID(), buf: buf}
	w := &PipeWriter{id: epoll.NewID(), buf: buf}
	r.writer, w.reader = w, r
	return r, w
}

func (r *PipeReader) ID() epoll.ID {
	return r.id
}

// Readiness: readable with data buffered, hung up once the writer closed.
func (r *PipeReader) Readiness() epoll.Mask {
	r.buf.mu.RLock()
	defer r.buf.mu.RUnlock()
	if r.buf.readerClosed {
		return 0
	}
	var m epoll.Mask
	if len(r.buf.data) > 0 {
		m |= epoll.EventIn | epoll.EventRdNorm
	}
	if r.buf.writerClosed {
		m |= epoll.EventHup
	}
	return m
}

func (r *PipeReader) Read(p []byte) (int, error) {
	r.buf.mu.Lock()
	if r.buf.readerClosed {
		r.buf.mu.Unlock()
		return 0, ErrClosed
	}
	if len(r.buf.data) == 0 {
		eof := r.buf.writerClosed
		r.buf.mu.Unlock()
		if eof {
			return 0, io.EOF
		}
		return 0, ErrWouldBlock
	}
	n := copy(p, r.buf.data)
	r.buf.data = r.buf.data[n:]
	r.buf.mu.Unlock()

	r.Notify(r)
	r.writer.Notify(r.writer)
	return n, nil
}

func (r *PipeReader) Close() error {
	r.buf.mu.Lock()
	if r.buf.readerClosed {
		r.buf.mu.Unlock()
		return ErrClosed
	}
	r.buf.readerClosed = true
	r.buf.data = nil
	r.buf.mu.Unlock()

	r.writer.Notify(r.writer)
	return nil
}

func (w *PipeWriter) ID() epoll.ID {
	return w.id
}

// Readiness: writable with room left, error once the reader closed.
func (w *PipeWriter) Readiness() epoll.Mask {
	w.buf.mu.RLock()
	defer w.buf.mu.RUnlock()
	if w.buf.writerClosed {
		return 0
	}
	if w.buf.readerClosed {
		return epoll.EventErr
	}
	if len(w.buf.data) < w.buf.capacity {
		return epoll.EventOut | epoll.EventWrNorm
	}
	return 0
}

func (w *PipeWriter) Write(p []byte) (int, error) {
	w.buf.mu.Lock()
	switch {
	case w.buf.writerClosed:
		w.buf.mu.Unlock()
		return 0, ErrClosed
	case w.buf.readerClosed:
		w.buf.mu.Unlock()
		return 0, ErrPipe
	}
	space := w.buf.capacity - len(w.buf.data)
	if space == 0 {
		w.buf.mu.Unlock()
		return 0, ErrWouldBlock
	}
	n := min(space, len(p))
	w.buf.data = append(w.buf.data, p[:n]...)
	w.buf.mu.Unlock()

	w.reader.Notify(w.reader)
	w.Notify(w)
	return n, nil
}

func (w *PipeWriter) Close() error {
	w.buf.mu.Lock()
	if w.buf.writerClosed {
		w.buf.mu.Unlock()
		return ErrClosed
	}
	w.buf.writerClosed = true
	w.buf.mu.Unlock()

	w.reader.Notify(w.reader)
	return nil
}
