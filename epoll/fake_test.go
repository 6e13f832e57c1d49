package epoll

import "sync"

// fakeEndpoint is an endpoint whose level is set directly by the test.
type fakeEndpoint struct {
	id ID

	mu       sync.Mutex
	level    Mask
	watchers []Watcher
}

func newFakeEndpoint(level Mask) *fakeEndpoint {
	return &fakeEndpoint{id: NewID(), level: level}
}

func (f *fakeEndpoint) ID() ID { return f.id }

func (f *fakeEndpoint) Readiness() Mask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

func (f *fakeEndpoint) EventRegister(w Watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchers = append(f.watchers, w)
}

func (f *fakeEndpoint) EventUnregister(w Watcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, x := range f.watchers {
		if x == w {
			f.watchers = append(f.watchers[:i], f.watchers[i+1:]...)
			return
		}
	}
}

func (f *fakeEndpoint) watcherCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// set changes the level and pushes the change to watchers.
func (f *fakeEndpoint) set(level Mask) {
	f.mu.Lock()
	f.level = level
	watchers := append([]Watcher(nil), f.watchers...)
	f.mu.Unlock()
	for _, w := range watchers {
		w.ReadinessChanged(f)
	}
}

// setQuiet changes the level without telling anyone.
func (f *fakeEndpoint) setQuiet(level Mask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
}
