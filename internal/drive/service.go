package drive

import (
	"context"

	"github.com/AndrewsGM/driver-pro/internal/session"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// CheckpointSource resolves the checkpoints of an exam route.
type CheckpointSource interface {
	Checkpoints(ctx context.Context, routeID string) ([]session.Checkpoint, error)
}

// SessionReader reads sessions that are no longer held in memory.
type SessionReader interface {
	Get(ctx context.Context, id string) (session.Session, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]session.Session, error)
}

type Service struct {
	manager *session.Manager
	store   SessionReader
	routes  CheckpointSource
}

func NewService(manager *session.Manager, store SessionReader, routes CheckpointSource) *Service {
	return &Service{manager: manager, store: store, routes: routes}
}

func (s *Service) Start(ctx context.Context, userID string, req StartRequest) (session.Session, error) {
	opts := session.StartOptions{Type: session.Type(req.Type), RouteID: req.RouteID}
	if opts.Type.Checkpointed() && s.routes != nil {
		cps, err := s.routes.Checkpoints(ctx, req.RouteID)
		if err != nil {
			return session.Session{}, err
		}
		opts.Checkpoints = cps
	}
	return s.manager.Start(ctx, userID, opts)
}

func (s *Service) Engine(sessionID, userID string) (*session.Engine, error) {
	return s.manager.Lookup(sessionID, userID)
}

// Fixes applies fixes in the order given and returns the snapshot after the
// last one.
func (s *Service) Fixes(sessionID, userID string, fixes []telemetry.GeoFix) (telemetry.Snapshot, error) {
	e, err := s.manager.Lookup(sessionID, userID)
	if err != nil {
		return telemetry.Snapshot{}, err
	}
	var snap telemetry.Snapshot
	for _, fix := range fixes {
		snap, err = e.OnFix(fix)
		if err != nil {
			return telemetry.Snapshot{}, err
		}
	}
	return snap, nil
}

func (s *Service) Stop(ctx context.Context, sessionID, userID string) (session.Report, error) {
	return s.manager.Stop(ctx, sessionID, userID)
}

// View returns the live view of a held session, or the stored session once
// the engine has been released.
func (s *Service) View(ctx context.Context, sessionID, userID string) (session.View, error) {
	e, err := s.manager.Lookup(sessionID, userID)
	if err == nil {
		return e.View(), nil
	}
	stored, err := s.stored(ctx, sessionID, userID)
	if err != nil {
		return session.View{}, err
	}
	stored.Route = nil
	return session.View{Session: stored, ElapsedSeconds: stored.DurationSeconds}, nil
}

func (s *Service) Route(ctx context.Context, sessionID, userID string) ([]telemetry.RoutePoint, error) {
	e, err := s.manager.Lookup(sessionID, userID)
	if err == nil {
		return e.Route(), nil
	}
	stored, err := s.stored(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return stored.Route, nil
}

func (s *Service) History(ctx context.Context, userID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	out := []Summary{}
	if s.store == nil {
		return out, nil
	}
	list, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	for _, item := range list {
		out = append(out, summarize(item))
	}
	return out, nil
}

func (s *Service) stored(ctx context.Context, sessionID, userID string) (session.Session, error) {
	if s.store == nil {
		return session.Session{}, session.ErrSessionNotFound
	}
	stored, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return session.Session{}, err
	}
	if stored.UserID != userID {
		return session.Session{}, session.ErrSessionNotFound
	}
	return stored, nil
}
