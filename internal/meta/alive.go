package meta

import (
	"sort"
	"sync"
	"time"

	"github.com/zenjugit/zeppelin/internal/metrics"
)

// AliveTracker is the process-local heartbeat table mapping "ip:port" to the
// last heartbeat time. It is never persisted; the leader rebuilds it from the
// registry's up subset on takeover. The lock is held only for the duration of
// map access, never across log I/O.
type AliveTracker struct {
	mu    sync.Mutex
	table map[string]time.Time
	now   func() time.Time
}

// NewAliveTracker creates an empty tracker. A nil clock means time.Now;
// tests inject their own.
func NewAliveTracker(clock func() time.Time) *AliveTracker {
	if clock == nil {
		clock = time.Now
	}
	return &AliveTracker{
		table: make(map[string]time.Time),
		now:   clock,
	}
}

// Touch upserts the heartbeat timestamp for ipPort to now.
func (t *AliveTracker) Touch(ipPort string) {
	t.mu.Lock()
	t.table[ipPort] = t.now()
	metrics.AliveNodes.Set(float64(len(t.table)))
	t.mu.Unlock()
}

// Refresh updates the timestamp only if the node is already tracked and
// reports whether it was.
func (t *AliveTracker) Refresh(ipPort string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.table[ipPort]; !ok {
		return false
	}
	t.table[ipPort] = t.now()
	return true
}

// Sweep removes every entry whose last heartbeat is older than timeout and
// returns the removed addresses in sorted order. The caller processes
// failovers for them after this returns, outside the tracker lock.
func (t *AliveTracker) Sweep(timeout time.Duration) []string {
	now := t.now()

	t.mu.Lock()
	var stale []string
	for ipPort, last := range t.table {
		if now.Sub(last) > timeout {
			stale = append(stale, ipPort)
		}
	}
	for _, ipPort := range stale {
		delete(t.table, ipPort)
	}
	metrics.AliveNodes.Set(float64(len(t.table)))
	t.mu.Unlock()

	sort.Strings(stale)
	return stale
}

// Restore replaces the whole table with the given nodes stamped at the
// current time. Used only during leader takeover.
func (t *AliveTracker) Restore(nodes []Node) {
	now := t.now()

	t.mu.Lock()
	t.table = make(map[string]time.Time, len(nodes))
	for _, n := range nodes {
		t.table[n.Addr()] = now
	}
	metrics.AliveNodes.Set(float64(len(t.table)))
	t.mu.Unlock()
}

// Addrs returns the tracked addresses in sorted order.
func (t *AliveTracker) Addrs() []string {
	t.mu.Lock()
	addrs := make([]string, 0, len(t.table))
	for ipPort := range t.table {
		addrs = append(addrs, ipPort)
	}
	t.mu.Unlock()

	sort.Strings(addrs)
	return addrs
}

// Len reports the number of tracked nodes.
func (t *AliveTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.table)
}
