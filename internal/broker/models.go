package broker

import (
	"time"

	"github.com/AndrewsGM/driver-pro/internal/session"
)

const (
	SessionsExchange = "driver.sessions"
	finishedKey      = "session.finished."
)

// FinishedEvent is the body of a session.finished message.
type FinishedEvent struct {
	SessionID       string    `json:"session_id"`
	UserID          string    `json:"user_id"`
	Type            string    `json:"type"`
	FinalScore      int       `json:"final_score"`
	XPEarned        int       `json:"xp_earned"`
	DurationSeconds int64     `json:"duration_seconds"`
	DistanceKm      float64   `json:"distance_km"`
	FinishedAt      time.Time `json:"finished_at"`
}

func newFinishedEvent(s session.Session) FinishedEvent {
	return FinishedEvent{
		SessionID:       s.ID,
		UserID:          s.UserID,
		Type:            string(s.Type),
		FinalScore:      s.FinalScore,
		XPEarned:        s.XPEarned,
		DurationSeconds: s.DurationSeconds,
		DistanceKm:      s.DistanceKm,
		FinishedAt:      s.EndTime,
	}
}

func routingKey(t session.Type) string {
	return finishedKey + string(t)
}
