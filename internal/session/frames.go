package session

import (
	"github.com/AndrewsGM/driver-pro/internal/telemetry"

	"github.com/goccy/go-json"
)

// frame is the live message pushed to session watchers.
type frame struct {
	Kind           string                `json:"kind"`
	SessionID      string                `json:"session_id"`
	ElapsedSeconds *int64                `json:"elapsed_seconds,omitempty"`
	Point          *telemetry.RoutePoint `json:"point,omitempty"`
	RouteLen       *int                  `json:"route_len,omitempty"`
	Snapshot       *telemetry.Snapshot   `json:"snapshot,omitempty"`
	Error          *ErrorEvent           `json:"error,omitempty"`
	Counters       *Counters             `json:"counters,omitempty"`
	Checkpoint     *Checkpoint           `json:"checkpoint,omitempty"`
	Session        *Session              `json:"session,omitempty"`
}

func (e *Engine) notify(f frame) {
	if e.deps.Notifier == nil {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		e.log.Error().Err(err).Str("kind", f.Kind).Msg("frame encode failed")
		return
	}
	e.deps.Notifier.Broadcast(f.SessionID, payload)
}
