package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/eclypse-bridge/internal/entry"
)

// DefaultSessionTTL is how long a session survives without activity.
const DefaultSessionTTL = 15 * time.Minute

// EntryStore persists finished entries. entry.SQLiteRepository satisfies it.
type EntryStore interface {
	Create(ctx context.Context, e *entry.Entry) error
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Factory builds a Discoverer from submitted credentials. Required.
	Factory DiscovererFactory

	// Store receives the entry when a session finishes. Optional.
	Store EntryStore

	// TTL overrides DefaultSessionTTL.
	TTL time.Duration

	// OnCreated is called after Store accepts a new entry.
	OnCreated func(e *entry.Entry)
}

type sessionEntry struct {
	session   *Session
	expiresAt time.Time
}

// Manager holds in-progress sessions keyed by ID. Sessions expire after
// TTL without a Get or Submit.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	opts     ManagerOptions
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Factory == nil {
		return nil, fmt.Errorf("%w: factory is required", ErrInvalidInput)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	return &Manager{
		sessions: make(map[string]sessionEntry),
		opts:     opts,
		now:      time.Now,
	}, nil
}

// Begin starts a new session at the credentials step.
func (m *Manager) Begin() View {
	s := newSession(uuid.NewString(), m.opts.Factory, m.finish)

	m.mu.Lock()
	expiresAt := m.now().Add(m.opts.TTL)
	m.sessions[s.id] = sessionEntry{session: s, expiresAt: expiresAt}
	m.mu.Unlock()

	v := s.View()
	v.ExpiresAt = expiresAt
	return v
}

func (m *Manager) finish(ctx context.Context, e *entry.Entry) error {
	if m.opts.Store == nil {
		return nil
	}
	if err := m.opts.Store.Create(ctx, e); err != nil {
		return err
	}
	if m.opts.OnCreated != nil {
		m.opts.OnCreated(e)
	}
	return nil
}

// touch returns a live session and extends its deadline.
func (m *Manager) touch(id string) (*Session, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	se, ok := m.sessions[id]
	now := m.now()
	if !ok || now.After(se.expiresAt) {
		delete(m.sessions, id)
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	se.expiresAt = now.Add(m.opts.TTL)
	m.sessions[id] = se
	return se.session, se.expiresAt, nil
}

// Get returns the current view of a session.
func (m *Manager) Get(id string) (View, error) {
	s, expiresAt, err := m.touch(id)
	if err != nil {
		return View{}, err
	}
	v := s.View()
	v.ExpiresAt = expiresAt
	return v, nil
}

// Submit feeds input to a session's current step.
func (m *Manager) Submit(ctx context.Context, id string, in Input) (View, error) {
	s, expiresAt, err := m.touch(id)
	if err != nil {
		return View{}, err
	}
	v, err := s.Submit(ctx, in)
	v.ExpiresAt = expiresAt
	return v, err
}

// Cancel discards a session. It reports whether the session existed.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	return ok
}

// Len returns the number of held sessions, expired ones included until the
// next Cleanup.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Cleanup removes expired sessions.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, se := range m.sessions {
		if now.After(se.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

// CleanupLoop runs Cleanup every interval until ctx is cancelled.
func (m *Manager) CleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
