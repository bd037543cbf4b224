// Package status tracks the busy/idle state shown as a loading indicator.
package status

import "sync"

// BusyFunc is called on every busy/idle transition.
type BusyFunc func(busy bool)

// Reporter receives busy/idle transitions from the transport.
type Reporter interface {
	SetBusy(busy bool)
}

// Tracker holds a single busy flag and the observers interested in it.
// Overlapping calls are last-writer-wins: the flag reflects whichever call
// reported most recently.
type Tracker struct {
	mu        sync.Mutex
	busy      bool
	nextID    int
	observers map[int]BusyFunc
	order     []int
}

// NewTracker returns an idle tracker with no observers.
func NewTracker() *Tracker {
	return &Tracker{observers: make(map[int]BusyFunc)}
}

// OnBusyChange registers fn and returns a function that unregisters it.
// Observers are notified in registration order.
func (t *Tracker) OnBusyChange(fn BusyFunc) (unregister func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++
	t.observers[id] = fn
	t.order = append(t.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

func (t *Tracker) remove(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.observers, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// SetBusy records the flag and notifies every observer. Observers run
// outside the lock so they may call Busy or register further observers.
func (t *Tracker) SetBusy(busy bool) {
	t.mu.Lock()
	t.busy = busy
	fns := make([]BusyFunc, 0, len(t.order))
	for _, id := range t.order {
		fns = append(fns, t.observers[id])
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(busy)
	}
}

// Busy returns the current flag.
func (t *Tracker) Busy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.busy
}

// Observers returns the number of registered observers.
func (t *Tracker) Observers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
