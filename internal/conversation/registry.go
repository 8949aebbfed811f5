package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one live interview for a schedule task.
type Session struct {
	ID        string
	TaskID    string
	Engine    *Engine
	StartedAt time.Time

	lastSeen time.Time
}

// Registry keeps live interviews in memory. Nothing here is persisted:
// dropping a session discards the interview.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session), now: time.Now}
}

// Start registers a new interview for taskID, replacing any earlier one for
// the same task.
func (r *Registry) Start(taskID string, engine *Engine) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	s := &Session{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Engine:    engine,
		StartedAt: now,
		lastSeen:  now,
	}
	for id, old := range r.sessions {
		if old.TaskID == taskID {
			delete(r.sessions, id)
		}
	}
	r.sessions[s.ID] = s
	return s
}

// Get returns a live interview and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		s.lastSeen = r.now().UTC()
	}
	return s, ok
}

// Delete abandons an interview. It reports whether one existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops interviews not used for longer than idle and returns how many
// were dropped. Interviews with an extraction in flight are kept.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().UTC().Add(-idle)
	dropped := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) && !s.Engine.inFlight.Load() {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// RunSweeper calls Sweep every interval until ctx ends.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				slog.Info("abandoned interviews dropped", "count", n, "remaining", r.Len())
			}
		}
	}
}
