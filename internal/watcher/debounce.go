package watcher

import (
	"sync"
	"time"

	"github.com/docloom/docloom/types"
)

// Change is one debounced filesystem mutation.
type Change struct {
	Path string
	Op   types.EventType
}

// Debouncer coalesces the bursts editors produce into one change per
// path. Changes flush together after a quiet period, in the order their
// paths first appeared.
//
// Ops merge per path: a create absorbs later updates, a create followed
// by a delete cancels out entirely, and otherwise the newest op wins
// (update then delete emits delete; delete then create emits create).
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	pending map[string]types.EventType
	order   []string
	timer   *time.Timer
	onFlush func([]Change)
	stopped bool
}

func NewDebouncer(delay time.Duration, onFlush func([]Change)) *Debouncer {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Debouncer{
		delay:   delay,
		pending: make(map[string]types.EventType),
		onFlush: onFlush,
	}
}

// Add queues op for path and restarts the quiet-period timer.
func (d *Debouncer) Add(path string, op types.EventType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if old, queued := d.pending[path]; queued {
		switch {
		case old == types.EventCreate && op == types.EventDelete:
			d.drop(path)
		case old == types.EventCreate:
			// create absorbs updates
		default:
			d.pending[path] = op
		}
	} else {
		d.pending[path] = op
		d.order = append(d.order, path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// drop removes path from both the map and the order slice. Caller holds
// the lock.
func (d *Debouncer) drop(path string) {
	delete(d.pending, path)
	for i, p := range d.order {
		if p == path {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	changes := make([]Change, 0, len(d.order))
	for _, path := range d.order {
		if op, queued := d.pending[path]; queued {
			changes = append(changes, Change{Path: path, Op: op})
		}
	}
	d.pending = make(map[string]types.EventType)
	d.order = nil
	d.mu.Unlock()

	if len(changes) > 0 && d.onFlush != nil {
		d.onFlush(changes)
	}
}

// Flush delivers everything pending right away. Used on shutdown so a
// change detected just before the stop signal still reaches the stream.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
	d.flush()
}

// Stop cancels the pending flush and refuses further adds.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
