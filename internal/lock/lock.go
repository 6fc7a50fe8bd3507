// Package lock provides per-key exclusive sections with a bounded wait.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a lock could not be acquired within the wait bound.
var ErrBusy = errors.New("lock: busy")

// Locker grants exclusive access per key. Distinct keys never contend.
type Locker interface {
	// Acquire blocks until the key is held, timeout elapses, or ctx is done.
	// The returned release func must be called exactly once; extra calls are no-ops.
	Acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error)
}

// Memory is an in-process Locker.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMemory constructs an empty in-process locker.
func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*slot)}
}

// Acquire implements Locker.
func (m *Memory) Acquire(ctx context.Context, key string, timeout time.Duration) (func(), error) {
	s := m.ref(key)

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-expired:
		m.unref(key, s)
		return nil, ErrBusy
	case <-ctx.Done():
		m.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.unref(key, s)
		})
	}, nil
}

func (m *Memory) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *Memory) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// held reports how many keys currently have waiters or holders.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
