package endpoint_test

import (
	"github.com/fzft/go-mock-epoll/endpoint"
	"github.com/fzft/go-mock-epoll/epoll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"runtime"
	"testing"
	"time"
)

const inOutET = epoll.EventIn | epoll.EventOut | epoll.EdgeTriggered

func TestSocketPairPeerWriteWakesWaiter(t *testing.T) {
	m := epoll.NewMonitor()
	defer m.Close()
	a, b := endpoint.NewSocketPair(0)

	require.NoError(t, m.Add(a, inOutET, 7))
	events, err := m.Wait(8, 0)
	require.NoError(t, err)
	assert.Equal(t, []epoll.Event{{Events: epoll.EventOut, Tag: 7}}, events)

	go func() {
		runtime.Gosched()
		_, _ = b.Write([]byte("abcde"))
	}()

	events, err = m.Wait(8, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []epoll.Event{{Events: epoll.EventIn | epoll.EventOut, Tag: 7}}, events)

	// nothing changed since the last delivery
	events, err = m.Wait(8, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventFDBlockedWaiter(t *testing.T) {
	m := epoll.NewMonitor()
	defer m.Close()
	e := endpoint.NewEventFD(0, false)

	require.NoError(t, m.Add(e, epoll.EventIn|epoll.EdgeTriggered, 1))
	events, err := m.Wait(1, 0)
	require.NoError(t, err)
	assert.Empty(t, events)

	done := make(chan []epoll.Event, 1)
	go func() {
		events, _ := m.Wait(1, -1)
		done <- events
	}()
	require.Eventually(t, func() bool { return m.Blocked() == 1 }, 2*time.Second, time.Millisecond)

	require.NoError(t, e.WriteValue(1))
	select {
	case events := <-done:
		assert.Equal(t, []epoll.Event{{Events: epoll.EventIn, Tag: 1}}, events)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken")
	}

	// a second increment while still readable is not an edge
	require.NoError(t, e.WriteValue(1))
	events, err = m.Wait(1, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPipeHangupReported(t *testing.T) {
	m := epoll.NewMonitor()
	defer m.Close()
	r, w := endpoint.NewPipe(0)

	require.NoError(t, m.Add(r, epoll.EventIn|epoll.EdgeTriggered, 3))
	require.NoError(t, w.Close())

	events, err := m.Wait(4, 0)
	require.NoError(t, err)
	assert.Equal(t, []epoll.Event{{Events: epoll.EventHup, Tag: 3}}, events)
}

func TestDeleteUnregistersFromEndpoint(t *testing.T) {
	m := epoll.NewMonitor()
	defer m.Close()
	e := endpoint.NewEventFD(0, false)

	require.NoError(t, m.Add(e, inOutET, 0))
	assert.Equal(t, 1, e.Watchers())
	require.NoError(t, m.Delete(e))
	assert.Equal(t, 0, e.Watchers())

	require.NoError(t, m.Add(e, inOutET, 0))
	require.NoError(t, m.Close())
	assert.Equal(t, 0, e.Watchers())
}
