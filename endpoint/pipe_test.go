package endpoint

import (
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"testing"
)

func TestPipe(t *testing.T) {
	r, w := NewPipe(8)
	assert.Equal(t, epoll.Mask(0), r.Readiness())
	assert.Equal(t, writable, w.Readiness())

	n, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, readable, r.Readiness())
	assert.Equal(t, epoll.Mask(0), w.Readiness())

	buf := make([]byte, 16)
	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "01234567", string(buf[:n]))
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestPipeWriterClosed(t *testing.T) {
	r, w := NewPipe(0)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), ErrClosed)

	assert.Equal(t, readable|epoll.EventHup, r.Readiness())
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, epoll.EventHup, r.Readiness())
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipeReaderClosed(t *testing.T) {
	r, w := NewPipe(0)
	require.NoError(t, r.Close())

	assert.Equal(t, epoll.EventErr, w.Readiness())
	_, err := w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrPipe)
	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
