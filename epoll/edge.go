package epoll

// edgeTracker remembers the level seen by the last readiness query of one
// registration.
type edgeTracker struct {
	previous Mask
}

// diff returns the interest bits that went from clear to set since the
// previous query, then records level as the new snapshot.
func (e *edgeTracker) diff(level, interest Mask) Mask {
	edges := level & interest & (level ^ e.previous)
	e.previous = level
	return edges
}

// seed records level without producing edges.
func (e *edgeTracker) seed(level Mask) {
	e.previous = level
}
