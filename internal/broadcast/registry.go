package broadcast

import "sync"

// Registry tracks the sessions currently believed open. It is the only
// shared mutable state between connection lifecycles and the fan-out path,
// so every access goes through the mutex. Membership may be stale relative
// to the transport: a session in a snapshot can close a moment later.
type Registry struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[*Session]struct{}),
	}
}

// Register adds a session. Re-registering an already-present session is a
// no-op.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
}

// Unregister removes a session. Removing an absent session is a no-op, so
// it is safe to call from both the session's own close path and the
// broadcaster's dead-session cleanup, in any order, concurrently.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

// Snapshot returns a copy of the current membership. The slice is isolated
// from later Register/Unregister calls; iterating it never races with them.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll terminates every registered session and empties the registry.
// Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
