package dlist

// ListNode is an element of a List. A node that has been removed has nil
// Prev/Next and must not be removed again.
type ListNode[T any] struct {
	Prev  *ListNode[T]
	Next  *ListNode[T]
	Value T
}

// List is an intrusive-style doubly linked list. Callers keep the node
// returned by AddNodeTail so they can unlink it in O(1).
type List[T any] struct {
	Head   *ListNode[T]
	Tail   *ListNode[T]
	Length int
}

func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Empty unlinks every node.
func (l *List[T]) Empty() {
	current := l.Head
	for current != nil {
		next := current.Next
		current.Prev, current.Next = nil, nil
		current = next
	}
	l.Head, l.Tail = nil, nil
	l.Length = 0
}

// AddNodeTail appends value and returns its node.
func (l *List[T]) AddNodeTail(value T) *ListNode[T] {
	node := &ListNode[T]{Value: value}
	if l.Tail == nil {
		l.Head, l.Tail = node, node
	} else {
		node.Prev, l.Tail.Next, l.Tail = l.Tail, node, node
	}
	l.Length++
	return node
}

// RemoveNode unlinks node from the list.
func (l *List[T]) RemoveNode(node *ListNode[T]) {
	if node.Prev != nil {
		node.Prev.Next = node.Next
	} else {
		l.Head = node.Next
	}
	if node.Next != nil {
		node.Next.Prev = node.Prev
	} else {
		l.Tail = node.Prev
	}
	node.Next, node.Prev = nil, nil
	l.Length--
}

// PopHead removes and returns the first value.
func (l *List[T]) PopHead() (T, bool) {
	if l.Head == nil {
		var zero T
		return zero, false
	}
	node := l.Head
	l.RemoveNode(node)
	return node.Value, true
}

// Range calls fn for each value from head to tail until fn returns false.
func (l *List[T]) Range(fn func(value T) bool) {
	for node := l.Head; node != nil; node = node.Next {
		if !fn(node.Value) {
			return
		}
	}
}

// Len ...
func (l *List[T]) Len() int {
	return l.Length
}
