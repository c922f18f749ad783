package examroute

import (
	"time"

	"github.com/AndrewsGM/driver-pro/internal/session"
)

type Route struct {
	ID              string               `json:"id"`
	Name            string               `json:"name" validate:"required"`
	City            string               `json:"city" validate:"required"`
	Difficulty      string               `json:"difficulty" validate:"required,oneof=easy medium hard"`
	DurationMinutes int                  `json:"duration_minutes" validate:"gte=0"`
	Checkpoints     []session.Checkpoint `json:"checkpoints" validate:"required,min=1,dive"`
	CreatedAt       time.Time            `json:"created_at"`
}
