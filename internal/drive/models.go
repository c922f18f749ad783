package drive

import (
	"time"

	"github.com/AndrewsGM/driver-pro/internal/session"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"
)

type StartRequest struct {
	Type    string `json:"type" validate:"required,oneof=practice simulation exam"`
	RouteID string `json:"route_id"`
}

type FixRequest struct {
	Lat       *float64  `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng       *float64  `json:"lng" validate:"required,gte=-180,lte=180"`
	Timestamp time.Time `json:"timestamp"`
	SpeedMps  *float64  `json:"speed_mps" validate:"omitempty,gte=0"`
}

func (r FixRequest) toFix(now time.Time) telemetry.GeoFix {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return telemetry.GeoFix{Lat: *r.Lat, Lng: *r.Lng, Timestamp: ts, SpeedMps: r.SpeedMps}
}

type ErrorRequest struct {
	Severity    string `json:"severity" validate:"required,oneof=light serious"`
	Description string `json:"description" validate:"max=280"`
}

type EventRequest struct {
	Kind string `json:"kind" validate:"required,oneof=harsh_brake harsh_acceleration sharp_turn distraction"`
}

type CheckpointRequest struct {
	Passed *bool `json:"passed" validate:"required"`
}

type RouteResponse struct {
	SessionID string                 `json:"session_id"`
	Points    []telemetry.RoutePoint `json:"points"`
}

// Summary is a stored session without its route, as listed in history.
type Summary struct {
	ID              string           `json:"id"`
	Type            session.Type     `json:"session_type"`
	Status          session.Status   `json:"status"`
	RouteID         string           `json:"route_id,omitempty"`
	StartTime       time.Time        `json:"start_time"`
	EndTime         time.Time        `json:"end_time,omitempty"`
	DurationSeconds int64            `json:"duration_seconds"`
	DistanceKm      float64          `json:"distance_km"`
	FinalScore      int              `json:"final_score"`
	XPEarned        int              `json:"xp_earned"`
	ErrorCount      int              `json:"error_count"`
	Counters        session.Counters `json:"telemetry_data"`
}

func summarize(s session.Session) Summary {
	return Summary{
		ID:              s.ID,
		Type:            s.Type,
		Status:          s.Status,
		RouteID:         s.RouteID,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		DurationSeconds: s.DurationSeconds,
		DistanceKm:      s.DistanceKm,
		FinalScore:      s.FinalScore,
		XPEarned:        s.XPEarned,
		ErrorCount:      len(s.Errors),
		Counters:        s.Counters,
	}
}
