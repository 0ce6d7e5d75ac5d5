package mentions

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers per unit into one call after a quiet period.
type Debouncer struct {
	mu     sync.Mutex
	delay  time.Duration
	fn     func(UnitRef)
	timers map[UnitRef]*time.Timer
	closed bool
}

// NewDebouncer calls fn for a unit once delay has passed without a new trigger.
func NewDebouncer(delay time.Duration, fn func(UnitRef)) *Debouncer {
	return &Debouncer{
		delay:  delay,
		fn:     fn,
		timers: make(map[UnitRef]*time.Timer),
	}
}

// Trigger (re)starts the quiet period for ref.
func (d *Debouncer) Trigger(ref UnitRef) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if t, ok := d.timers[ref]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if d.timers[ref] != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, ref)
		d.mu.Unlock()

		d.fn(ref)
	})
	d.timers[ref] = t
}

// Pending reports how many units are waiting for their quiet period to end.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop drops every pending trigger. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for ref, t := range d.timers {
		t.Stop()
		delete(d.timers, ref)
	}
}
