package epoll

import "github.com/fzft/go-mock-epoll/dlist"

type waitResult struct {
	events []Event
	err    error
}

// waiter is a caller blocked in Wait.
type waiter struct {
	capacity int
	result   chan waitResult
	node     *dlist.ListNode[*waiter]
}

// waitQueue orders blocked callers first blocked, first woken.
type waitQueue struct {
	list *dlist.List[*waiter]
}

func newWaitQueue() *waitQueue {
	return &waitQueue{list: dlist.NewList[*waiter]()}
}

func (q *waitQueue) enqueue(capacity int) *waiter {
	w := &waiter{
		capacity: capacity,
		result:   make(chan waitResult, 1),
	}
	w.node = q.list.AddNodeTail(w)
	return w
}

func (q *waitQueue) front() (*waiter, bool) {
	if q.list.Head == nil {
		return nil, false
	}
	return q.list.Head.Value, true
}

// release dequeues w and hands it its result. The channel is buffered so
// release never blocks.
func (q *waitQueue) release(w *waiter, events []Event, err error) {
	q.list.RemoveNode(w.node)
	w.node = nil
	w.result <- waitResult{events: events, err: err}
}

// expire dequeues w if nobody released it yet.
func (q *waitQueue) expire(w *waiter) bool {
	if w.node == nil {
		return false
	}
	q.list.RemoveNode(w.node)
	w.node = nil
	return true
}

// releaseAll fails every blocked caller with err.
func (q *waitQueue) releaseAll(err error) int {
	n := 0
	for {
		w, ok := q.front()
		if !ok {
			return n
		}
		q.release(w, nil, err)
		n++
	}
}

func (q *waitQueue) len() int {
	return q.list.Len()
}
