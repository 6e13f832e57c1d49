package epoll

import (
	"github.com/fzft/go-mock-epoll/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
	"time"
)

func TestTimeout(t *testing.T) {
	assert.Equal(t, time.Duration(-1), Timeout(-1))
	assert.Equal(t, time.Duration(-1), Timeout(-50))
	assert.Equal(t, time.Duration(0), Timeout(0))
	assert.Equal(t, 10*time.Millisecond, Timeout(10))
}

func TestTableLifecycle(t *testing.T) {
	table := NewTable()
	h := table.Create()
	h2 := table.Create()
	assert.NotEqual(t, h, h2)
	assert.Equal(t, []Handle{h, h2}, table.Handles())

	ep := newFakeEndpoint(EventOut)
	require.NoError(t, table.Control(h, OpAdd, ep, inOutET, 77))
	assert.ErrorIs(t, table.Control(h, OpAdd, ep, inOutET, 77), ErrAlreadyRegistered)

	events, err := table.Wait(h, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Events: EventOut, Tag: 77}}, events)

	require.NoError(t, table.Control(h, OpModify, ep, inOutET, 78))
	require.NoError(t, table.Control(h, OpDelete, ep, 0, 0))
	assert.ErrorIs(t, table.Control(h, OpDelete, ep, 0, 0), ErrNotFound)
	assert.ErrorIs(t, table.Control(h, Op(9), ep, 0, 0), ErrInvalidArgument)

	require.NoError(t, table.Close(h))
	assert.ErrorIs(t, table.Close(h), ErrClosed)
	_, err = table.Wait(h, 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, table.Control(h, OpAdd, ep, inOutET, 1), ErrClosed)

	h3 := table.Create()
	assert.Greater(t, h3, h2, "handles are not reused")
}

func TestTableCloseWakesBlockedWait(t *testing.T) {
	table := NewTable()
	h := table.Create()
	m, err := table.Monitor(h)
	require.NoError(t, err)

	ch := make(chan error, 1)
	go func() {
		_, err := table.Wait(h, 1, -1)
		ch <- err
	}()
	requireBlocked(t, m, 1)

	require.NoError(t, table.Close(h))
	select {
	case err := <-ch:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("wait not released by close")
	}
}

func TestTableShutdown(t *testing.T) {
	table := NewTable()
	for i := 0; i < 3; i++ {
		table.Create()
	}
	require.NoError(t, table.Shutdown())
	assert.Empty(t, table.Handles())
	assert.NoError(t, table.Shutdown())
}

func TestTableMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	table := NewTable(WithMetrics(metrics.New(reg)))
	h := table.Create()
	ep := newFakeEndpoint(EventOut)
	require.NoError(t, table.Control(h, OpAdd, ep, inOutET, 1))
	_ = table.Control(h, OpAdd, ep, inOutET, 1)

	_, err := table.Wait(h, 1, 0)
	require.NoError(t, err)
	_, err = table.Wait(h, 1, 0)
	require.NoError(t, err)

	expected := `
# HELP epoll_waits_total The number of completed wait calls by outcome
# TYPE epoll_waits_total counter
epoll_waits_total{result="empty"} 1
epoll_waits_total{result="events"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "epoll_waits_total"))

	expected = `
# HELP epoll_control_total The number of add/modify/delete operations by outcome
# TYPE epoll_control_total counter
epoll_control_total{op="add",result="already_registered"} 1
epoll_control_total{op="add",result="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "epoll_control_total"))
}
