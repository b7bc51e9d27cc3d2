// Package lock serializes conversation turns per session, within one
// process or across processes through Redis.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soyeahso/helix/internal/config"
	"github.com/soyeahso/helix/internal/logging"
)

// Locker hands out exclusive per-key locks. Lock blocks until the key is
// free or ctx is done; the returned func releases it and is safe to call
// more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// New builds the locker selected by session.Lock.
func New(session config.SessionConfig, rcfg config.RedisConfig, log *logging.Logger) (Locker, error) {
	switch session.Lock {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		ttl := time.Duration(session.LockTTLSeconds) * time.Second
		r, err := NewRedisFromConfig(rcfg, ttl, log)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown session lock %q", session.Lock)
	}
}

// Local is an in-process Locker.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock acquires key.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, s, true) })
	}, nil
}

func (l *Local) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// Len reports how many keys are held or awaited.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
