package drive

import (
	"bytes"
	"errors"
	"time"

	"github.com/AndrewsGM/driver-pro/internal/auth"
	"github.com/AndrewsGM/driver-pro/internal/db"
	"github.com/AndrewsGM/driver-pro/internal/examroute"
	"github.com/AndrewsGM/driver-pro/internal/session"
	"github.com/AndrewsGM/driver-pro/internal/telemetry"
	"github.com/AndrewsGM/driver-pro/internal/validation"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

var errNoFixes = errors.New("at least one fix is required")

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/sessions", func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validation.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		s, err := svc.Start(c.Context(), auth.UserID(c), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	})

	r.Post("/sessions/:id/fixes", func(c *fiber.Ctx) error {
		fixes, err := parseFixes(c.Body(), time.Now().UTC())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		snap, err := svc.Fixes(c.Params("id"), auth.UserID(c), fixes)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(snap)
	})

	r.Post("/sessions/:id/errors", func(c *fiber.Ctx) error {
		var req ErrorRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validation.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e, err := svc.Engine(c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		ev, err := e.RecordError(session.Severity(req.Severity), req.Description)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(ev)
	})

	r.Post("/sessions/:id/events", func(c *fiber.Ctx) error {
		var req EventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validation.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e, err := svc.Engine(c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		counters, err := e.RecordEvent(session.EventKind(req.Kind))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(counters)
	})

	r.Post("/sessions/:id/pause", func(c *fiber.Ctx) error {
		e, err := svc.Engine(c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		if err := e.Pause(); err != nil {
			return httpError(err)
		}
		return c.JSON(e.View())
	})

	r.Post("/sessions/:id/resume", func(c *fiber.Ctx) error {
		e, err := svc.Engine(c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		if err := e.Resume(); err != nil {
			return httpError(err)
		}
		return c.JSON(e.View())
	})

	r.Post("/sessions/:id/checkpoints", func(c *fiber.Ctx) error {
		var req CheckpointRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validation.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		e, err := svc.Engine(c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		res, err := e.HandleCheckpointPass(c.Context(), *req.Passed)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	})

	r.Post("/sessions/:id/stop", func(c *fiber.Ctx) error {
		report, err := svc.Stop(c.Context(), c.Params("id"), auth.UserID(c))
		if err != nil && !errors.Is(err, session.ErrAlreadyFinished) {
			return httpError(err)
		}
		return c.JSON(report)
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		view, err := svc.View(c.Context(), c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(view)
	})

	r.Get("/sessions/:id/route", func(c *fiber.Ctx) error {
		points, err := svc.Route(c.Context(), c.Params("id"), auth.UserID(c))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(RouteResponse{SessionID: c.Params("id"), Points: points})
	})

	r.Get("/history", func(c *fiber.Ctx) error {
		list, err := svc.History(c.Context(), auth.UserID(c), c.QueryInt("limit", defaultHistoryLimit))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(list)
	})
}

// parseFixes accepts a single fix object or an array of them.
func parseFixes(body []byte, now time.Time) ([]telemetry.GeoFix, error) {
	body = bytes.TrimSpace(body)
	var reqs []FixRequest
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &reqs); err != nil {
			return nil, err
		}
	} else {
		var one FixRequest
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, err
		}
		reqs = append(reqs, one)
	}
	if len(reqs) == 0 {
		return nil, errNoFixes
	}

	fixes := make([]telemetry.GeoFix, 0, len(reqs))
	for _, req := range reqs {
		if err := validation.Struct(req); err != nil {
			return nil, err
		}
		fixes = append(fixes, req.toFix(now))
	}
	return fixes, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrNoCheckpoints):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, examroute.ErrRouteNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, telemetry.ErrSensorUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, session.ErrStorageUnavailable),
		errors.Is(err, db.ErrNoDatabase):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	case errors.Is(err, session.ErrInvalidType),
		errors.Is(err, session.ErrInvalidSeverity),
		errors.Is(err, session.ErrInvalidEvent):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
