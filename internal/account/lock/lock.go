// Package lock provides per-key mutual exclusion with a canonical
// acquisition order. This is the invariant the whole engine leans on:
// every participant that needs two accounts locks them in ascending key
// order, so opposing transfers between the same pair cannot deadlock.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Keyed hands out one mutex per key, created on demand and reclaimed
// when the last waiter releases it.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Acquire blocks until the key's lock is held or ctx expires. The
// returned release function must be called exactly once.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	e := k.retain(key)

	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				k.discard(key)
			})
		}, nil
	case <-ctx.Done():
		k.discard(key)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}
}

// AcquireOrdered locks all keys in ascending order, releasing any
// already-held locks if a later acquisition fails. The returned release
// unlocks in reverse acquisition order.
func (k *Keyed) AcquireOrdered(ctx context.Context, keys ...string) (func(), error) {
	ordered := dedupeSorted(keys)

	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	for _, key := range ordered {
		release, err := k.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}

func (k *Keyed) retain(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) discard(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

func dedupeSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
