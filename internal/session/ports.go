package session

import "context"

// Store persists sessions. Create assigns the id.
type Store interface {
	Create(ctx context.Context, s Session) (Session, error)
	Update(ctx context.Context, id string, patch Patch) (Session, error)
}

// ProgressStore persists the per-user progress aggregate.
type ProgressStore interface {
	Filter(ctx context.Context, userKey string) ([]Progress, error)
	Create(ctx context.Context, p Progress) (Progress, error)
	Update(ctx context.Context, id string, p Progress) (Progress, error)
}

// Publisher announces finished sessions to other services.
type Publisher interface {
	PublishFinished(ctx context.Context, s Session) error
}

// Notifier pushes live frames to whoever watches a session.
type Notifier interface {
	Broadcast(sessionID string, payload []byte)
}
