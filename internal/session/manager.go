package session

import (
	"context"
	"errors"
	"sync"

	"github.com/AndrewsGM/driver-pro/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

// Manager tracks the engines of all users and enforces one live session per
// user. Only the latest engine per user is retained.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Engine
	byUser   map[string]*Engine
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: map[string]*Engine{},
		byUser:   map[string]*Engine{},
	}
}

func (m *Manager) Start(ctx context.Context, userID string, opts StartOptions) (Session, error) {
	m.mu.Lock()
	if cur, ok := m.byUser[userID]; ok {
		// An idle engine in byUser is a start still in flight.
		if cur.Status() != StatusFinished {
			m.mu.Unlock()
			return Session{}, ErrSessionActive
		}
		delete(m.sessions, cur.ID())
	}
	e := NewEngine(userID, m.deps)
	m.byUser[userID] = e
	m.mu.Unlock()

	s, err := e.Start(ctx, opts)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if m.byUser[userID] == e {
			delete(m.byUser, userID)
		}
		return Session{}, err
	}
	m.sessions[s.ID] = e
	return s, nil
}

// Lookup returns the engine of sessionID when it belongs to userID.
func (m *Manager) Lookup(sessionID, userID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok || e.UserID() != userID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Active returns the live engine of userID, if any.
func (m *Manager) Active(userID string) (*Engine, bool) {
	m.mu.Lock()
	e, ok := m.byUser[userID]
	m.mu.Unlock()
	if !ok || e.Status() != StatusActive {
		return nil, false
	}
	return e, true
}

func (m *Manager) Stop(ctx context.Context, sessionID, userID string) (Report, error) {
	e, err := m.Lookup(sessionID, userID)
	if err != nil {
		return Report{}, err
	}
	return e.Stop(ctx)
}

// PushFix routes a fix coming from a device stream to its session when the
// session belongs to userID.
func (m *Manager) PushFix(sessionID, userID string, fix telemetry.GeoFix) error {
	e, err := m.Lookup(sessionID, userID)
	if err != nil {
		return err
	}
	return e.PushFix(fix)
}

// Close finishes every live session concurrently.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	live := make([]*Engine, 0, len(m.byUser))
	for _, e := range m.byUser {
		live = append(live, e)
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range live {
		g.Go(func() error {
			_, err := e.Stop(gctx)
			if errors.Is(err, ErrAlreadyFinished) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
