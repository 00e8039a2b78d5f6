// Package keylock serializes work per key, either within one process or across
// instances through redis.
package keylock

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Key joins parts with ':' after escaping each one, so parts that contain ':' cannot collide.
func Key(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.QueryEscape(p)
	}
	return strings.Join(escaped, ":")
}

// Locker acquires an exclusive lock on key. The returned func releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

type local struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// NewLocal returns an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits on them.
func NewLocal() Locker {
	return &local{locks: make(map[string]*entry)}
}

func (l *local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *local) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
