// Package memlog is an in-memory implementation of the replicated-log
// contract. It backs tests and local single-process runs; there is no
// replication, every read is served from the same map.
package memlog

import (
	"sync"

	"github.com/zenjugit/zeppelin/internal/store"
	"github.com/zenjugit/zeppelin/pkg/errs"
)

type Log struct {
	mu         sync.Mutex
	data       map[string][]byte
	leaderIP   string
	leaderPort int
	hasLeader  bool

	// Hooks for fault injection in tests. A non-nil return aborts the
	// operation with that error.
	WriteHook func(key string) error
	ReadHook  func(key string) error
}

var _ store.Log = (*Log)(nil)

func New() *Log {
	return &Log{data: make(map[string][]byte)}
}

// SetLeader sets what GetLeader reports.
func (l *Log) SetLeader(ip string, port int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaderIP, l.leaderPort, l.hasLeader = ip, port, true
}

// ClearLeader makes GetLeader report no elected leader.
func (l *Log) ClearLeader() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasLeader = false
}

func (l *Log) GetLeader() (string, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.leaderIP, l.leaderPort, l.hasLeader
}

func (l *Log) Read(key string) ([]byte, error) {
	return l.read(key)
}

func (l *Log) DirtyRead(key string) ([]byte, error) {
	return l.read(key)
}

func (l *Log) read(key string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ReadHook != nil {
		if err := l.ReadHook(key); err != nil {
			return nil, err
		}
	}
	value, ok := l.data[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (l *Log) Write(key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.WriteHook != nil {
		if err := l.WriteHook(key); err != nil {
			return err
		}
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	l.data[key] = cp
	return nil
}

func (l *Log) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.WriteHook != nil {
		if err := l.WriteHook(key); err != nil {
			return err
		}
	}
	delete(l.data, key)
	return nil
}

// Len reports how many keys are stored.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.data)
}
