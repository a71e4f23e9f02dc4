package session

import (
	"slices"
	"sync"
)

// dispatcher delivers snapshots to observers in publish order without
// holding the controller lock.
type dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []delivery
	observers map[int]Observer
	order     []int
	nextID    int
	closed    bool
	done      chan struct{}
}

// delivery is one queued snapshot. to is an observer id, or all when
// negative.
type delivery struct {
	s  Snapshot
	to int
}

const all = -1

func newDispatcher() *dispatcher {
	d := &dispatcher{observers: make(map[int]Observer), done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// subscribe adds o and queues initial for it alone.
func (d *dispatcher) subscribe(o Observer, initial Snapshot) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.observers[id] = o
	d.order = append(d.order, id)
	d.enqueueLocked(delivery{s: initial, to: id})
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.observers[id]; !ok {
			return
		}
		delete(d.observers, id)
		d.order = slices.DeleteFunc(d.order, func(v int) bool { return v == id })
	}
}

func (d *dispatcher) push(s Snapshot) {
	d.mu.Lock()
	d.enqueueLocked(delivery{s: s, to: all})
	d.mu.Unlock()
}

func (d *dispatcher) enqueueLocked(dl delivery) {
	if d.closed {
		return
	}
	d.queue = append(d.queue, dl)
	d.cond.Signal()
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		dl := d.queue[0]
		d.queue = d.queue[1:]
		var targets []Observer
		if dl.to == all {
			for _, id := range d.order {
				targets = append(targets, d.observers[id])
			}
		} else if o, ok := d.observers[dl.to]; ok {
			targets = append(targets, o)
		}
		d.mu.Unlock()

		for _, o := range targets {
			o(dl.s)
		}
	}
}

// close drains what is queued, then stops.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}
