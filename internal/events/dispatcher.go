package events

import "sync"

// Listener receives settings change events.
type Listener func(SettingsChanged)

// Dispatcher fans events out to subscribed listeners in subscription order.
type Dispatcher struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener
	order     []uint64
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[uint64]Listener)}
}

// Subscribe registers l and returns an idempotent unsubscribe func.
func (d *Dispatcher) Subscribe(l Listener) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.listeners[id] = l
	d.order = append(d.order, id)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(id) })
	}
}

func (d *Dispatcher) remove(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.listeners[id]; !ok {
		return
	}
	delete(d.listeners, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Emit calls every listener synchronously. Listeners are snapshotted first so
// a listener may unsubscribe itself.
func (d *Dispatcher) Emit(evt SettingsChanged) {
	d.mu.RLock()
	snapshot := make([]Listener, 0, len(d.order))
	for _, id := range d.order {
		snapshot = append(snapshot, d.listeners[id])
	}
	d.mu.RUnlock()

	for _, l := range snapshot {
		l(evt)
	}
}

func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

// Clear drops every listener.
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.listeners = make(map[uint64]Listener)
	d.order = nil
	d.mu.Unlock()
}
