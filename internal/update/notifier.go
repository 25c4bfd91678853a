// Package update propagates membership changes to downstream watchers
// asynchronously, so heartbeat and sweep paths never block on them.
package update

import (
	"sync"

	"go.uber.org/zap"
)

// Op is the kind of membership change being propagated.
type Op int

const (
	OpAdd Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpAdd {
		return "add"
	}
	return "remove"
}

// Event is one membership change.
type Event struct {
	IPPort string
	Op     Op
}

// Watcher receives events in scheduling order on the notifier goroutine.
type Watcher func(Event)

// Notifier fans scheduled events out to subscribed watchers.
type Notifier struct {
	logger *zap.Logger

	mu       sync.Mutex
	watchers []Watcher

	events chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup
}

const defaultBuffer = 128

func NewNotifier(logger *zap.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		events: make(chan Event, defaultBuffer),
		stopCh: make(chan struct{}),
	}
}

// Subscribe registers a watcher. Watchers added after Start still receive
// subsequent events.
func (n *Notifier) Subscribe(w Watcher) {
	n.mu.Lock()
	n.watchers = append(n.watchers, w)
	n.mu.Unlock()
}

// Schedule queues an event. It never blocks; when the queue is full the
// event is dropped with a warning, since watchers can always resync from the
// persisted registry.
func (n *Notifier) Schedule(ipPort string, op Op) {
	select {
	case n.events <- Event{IPPort: ipPort, Op: op}:
	default:
		n.logger.Warn("update queue full, dropping event",
			zap.String("node", ipPort), zap.Stringer("op", op))
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go n.loop()
}

// Stop drains nothing and stops delivery.
func (n *Notifier) Stop() {
	close(n.stopCh)
	n.wg.Wait()
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case ev := <-n.events:
			n.mu.Lock()
			watchers := make([]Watcher, len(n.watchers))
			copy(watchers, n.watchers)
			n.mu.Unlock()
			for _, w := range watchers {
				w(ev)
			}
		case <-n.stopCh:
			return
		}
	}
}
