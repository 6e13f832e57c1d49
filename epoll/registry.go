package epoll

import (
	"fmt"
	"github.com/fzft/go-mock-epoll/dlist"
)

// interest is one registration. All fields are guarded by the owning
// monitor's lock.
type interest struct {
	ep   Endpoint
	mask Mask
	tag  uint64
	edge edgeTracker

	// armed is set while an edge waits for delivery. queued is set while
	// the interest sits on the ready list; a queued interest that is no
	// longer armed is skipped when popped.
	armed  bool
	queued bool

	// disabled is set after a one-shot delivery until the next Modify.
	disabled bool
	removed  bool

	node *dlist.ListNode[*interest]
}

// events is the effective interest set.
func (i *interest) events() Mask {
	return i.mask.Events() | alwaysWatched
}

// Registry keeps track of the endpoints registered with one monitor, in
// registration order.
type Registry struct {
	interestSet map[ID]*interest
	order       *dlist.List[*interest]
}

func NewRegistry() *Registry {
	return &Registry{
		interestSet: make(map[ID]*interest),
		order:       dlist.NewList[*interest](),
	}
}

// add registers ep.
func (r *Registry) add(ep Endpoint, mask Mask, tag uint64) (*interest, error) {
	id := ep.ID()
	if _, ok := r.interestSet[id]; ok {
		return nil, fmt.Errorf("add endpoint %d: %w", id, ErrAlreadyRegistered)
	}

	i := &interest{ep: ep, mask: mask, tag: tag}
	i.node = r.order.AddNodeTail(i)
	r.interestSet[id] = i
	return i, nil
}

// modify replaces the mask and tag of a registration.
func (r *Registry) modify(id ID, mask Mask, tag uint64) (*interest, error) {
	i, ok := r.interestSet[id]
	if !ok {
		return nil, fmt.Errorf("modify endpoint %d: %w", id, ErrNotFound)
	}
	i.mask = mask
	i.tag = tag
	return i, nil
}

// remove unregisters id and discards its edge history.
func (r *Registry) remove(id ID) (*interest, error) {
	i, ok := r.interestSet[id]
	if !ok {
		return nil, fmt.Errorf("delete endpoint %d: %w", id, ErrNotFound)
	}
	r.unlink(i)
	return i, nil
}

func (r *Registry) unlink(i *interest) {
	delete(r.interestSet, i.ep.ID())
	r.order.RemoveNode(i.node)
	i.node = nil
	i.removed = true
	i.armed = false
	i.edge = edgeTracker{}
}

func (r *Registry) lookup(id ID) (*interest, bool) {
	i, ok := r.interestSet[id]
	return i, ok
}

// each visits registrations in registration order.
func (r *Registry) each(fn func(i *interest)) {
	r.order.Range(func(i *interest) bool {
		fn(i)
		return true
	})
}

// clear removes every registration and returns them.
func (r *Registry) clear() []*interest {
	all := make([]*interest, 0, r.order.Len())
	r.each(func(i *interest) { all = append(all, i) })
	for _, i := range all {
		r.unlink(i)
	}
	return all
}

// Len returns the number of registrations.
func (r *Registry) Len() int {
	return len(r.interestSet)
}
