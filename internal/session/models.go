package session

import (
	"time"

	"github.com/AndrewsGM/driver-pro/internal/telemetry"
)

type Type string

const (
	TypePractice   Type = "practice"
	TypeSimulation Type = "simulation"
	TypeExam       Type = "exam"
)

func (t Type) Valid() bool {
	switch t {
	case TypePractice, TypeSimulation, TypeExam:
		return true
	}
	return false
}

// Checkpointed reports whether sessions of this type are driven by checkpoints.
func (t Type) Checkpointed() bool {
	return t == TypeSimulation || t == TypeExam
}

type Status string

const (
	StatusIdle     Status = "idle"
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

type Severity string

const (
	SeverityLight   Severity = "light"
	SeveritySerious Severity = "serious"
)

func (s Severity) Valid() bool {
	return s == SeverityLight || s == SeveritySerious
}

// ErrorEvent is a driving error recorded during a session. Checkpoint is set
// for misses in checkpoint mode.
type ErrorEvent struct {
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Checkpoint  *int      `json:"checkpoint,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Counters tallies discrete driving-behaviour events reported by the device.
type Counters struct {
	HarshBrakes        int `json:"harsh_brakes"`
	HarshAccelerations int `json:"harsh_accelerations"`
	SharpTurns         int `json:"sharp_turns"`
	DistractionEvents  int `json:"distraction_events"`
}

type EventKind string

const (
	EventHarshBrake        EventKind = "harsh_brake"
	EventHarshAcceleration EventKind = "harsh_acceleration"
	EventSharpTurn         EventKind = "sharp_turn"
	EventDistraction       EventKind = "distraction"
)

type Checkpoint struct {
	Order            int     `json:"order"`
	Type             string  `json:"type"`
	Instruction      string  `json:"instruction"`
	TriggerDistanceM float64 `json:"trigger_distance_m"`
}

type Session struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Type            Type                   `json:"session_type"`
	Status          Status                 `json:"status"`
	RouteID         string                 `json:"route_id,omitempty"`
	StartTime       time.Time              `json:"start_time"`
	EndTime         time.Time              `json:"end_time,omitempty"`
	DurationSeconds int64                  `json:"duration_seconds"`
	Route           []telemetry.RoutePoint `json:"route_data"`
	Errors          []ErrorEvent           `json:"errors"`
	Counters        Counters               `json:"telemetry_data"`
	DistanceKm      float64                `json:"distance_km"`
	FinalScore      int                    `json:"final_score"`
	XPEarned        int                    `json:"xp_earned"`
}

// Patch carries the fields written when a session leaves the live state.
type Patch struct {
	Status          Status
	EndTime         time.Time
	DurationSeconds int64
	Route           []telemetry.RoutePoint
	Errors          []ErrorEvent
	Counters        Counters
	DistanceKm      float64
	FinalScore      int
	XPEarned        int
}

// Report is the outcome of a stop. Warnings lists conditions that were
// recovered locally, such as a failed progress update.
type Report struct {
	Session         Session  `json:"session"`
	Warnings        []string `json:"warnings,omitempty"`
	AlreadyFinished bool     `json:"already_finished"`
	// Passed is the exam verdict; only set for checkpoint sessions.
	Passed *bool `json:"passed,omitempty"`
}

// CheckpointResult is returned after a checkpoint outcome is applied.
type CheckpointResult struct {
	Index  int         `json:"index"`
	Next   *Checkpoint `json:"next,omitempty"`
	Score  int         `json:"score"`
	Report *Report     `json:"report,omitempty"`
}

// View is a read-only picture of a live session.
type View struct {
	Session           Session            `json:"session"`
	Snapshot          telemetry.Snapshot `json:"snapshot"`
	ElapsedSeconds    int64              `json:"elapsed_seconds"`
	Paused            bool               `json:"paused"`
	SensorUnavailable bool               `json:"sensor_unavailable"`
	Checkpoint        *Checkpoint        `json:"checkpoint,omitempty"`
	CheckpointScore   *int               `json:"checkpoint_score,omitempty"`
}
