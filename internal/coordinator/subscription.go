package coordinator

import (
	"maps"
	"slices"
	"sync"
)

// Subscription is returned by every Subscribe call. Unsubscribe removes the
// callback; it is idempotent and safe to call from within the callback.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Unsubscribe stops further deliveries to the subscribed callback.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.remove)
}

// registry is a set of callbacks keyed by an opaque handle.
type registry[F any] struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]F
}

func (r *registry[F]) add(fn F) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs == nil {
		r.subs = make(map[uint64]F)
	}
	r.next++
	id := r.next
	r.subs[id] = fn
	return &Subscription{remove: func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}}
}

// snapshot returns the callbacks in registration order.
func (r *registry[F]) snapshot() []F {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]F, 0, len(r.subs))
	for _, id := range slices.Sorted(maps.Keys(r.subs)) {
		out = append(out, r.subs[id])
	}
	return out
}

func (r *registry[F]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
