package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	recentStatuses  = 4096
	recentStatusTTL = 30 * time.Minute
)

type entry struct {
	c    *Coordinator
	refs int
}

// Registry hands out one Coordinator per session. A coordinator lives only
// while a caller holds it or its submission is in flight; afterwards only its
// last Status is kept, in a bounded expiring cache.
type Registry struct {
	deps *Deps

	mu     sync.Mutex
	active map[string]*entry
	recent *expirable.LRU[string, Status]
}

// NewRegistry builds a Registry sharing deps across coordinators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:   &deps,
		active: make(map[string]*entry),
		recent: expirable.NewLRU[string, Status](recentStatuses, nil, recentStatusTTL),
	}
}

// Submit runs the checkout protocol on the session's coordinator.
func (r *Registry) Submit(ctx context.Context, sessionID string, req Request) (Result, error) {
	c := r.acquire(sessionID)
	defer r.release(sessionID)
	return c.Submit(ctx, req)
}

// Status reports the session's live status, or the last one recorded. The
// boolean is false when the session never checked out or its record expired.
func (r *Registry) Status(sessionID string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.active[sessionID]; ok {
		return e.c.Status(), true
	}
	if st, ok := r.recent.Get(sessionID); ok {
		return st, true
	}
	return Status{State: StateIdle}, false
}

// InFlight reports whether the session has a checkout validating or submitting.
func (r *Registry) InFlight(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[sessionID]
	return ok && e.c.InFlight()
}

// Active returns the number of coordinators currently held.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

func (r *Registry) acquire(sessionID string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[sessionID]
	if !ok {
		c := newCoordinator(sessionID, r.deps)
		if st, ok := r.recent.Get(sessionID); ok {
			c.status = st
		}
		c.onSettle = r.settled
		e = &entry{c: c}
		r.active[sessionID] = e
	}
	e.refs++
	return e.c
}

func (r *Registry) release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[sessionID]
	if !ok {
		return
	}
	e.refs--
	r.evictLocked(sessionID, e)
}

// settled runs when a coordinator's in-flight flag clears, which may happen
// after its caller went away.
func (r *Registry) settled(c *Coordinator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.active[c.sessionID]
	if !ok || e.c != c {
		return
	}
	r.evictLocked(c.sessionID, e)
}

func (r *Registry) evictLocked(sessionID string, e *entry) {
	if e.refs > 0 || e.c.InFlight() {
		return
	}
	r.recent.Add(sessionID, e.c.Status())
	delete(r.active, sessionID)
}
