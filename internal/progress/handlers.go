package progress

import (
	"github.com/AndrewsGM/driver-pro/internal/auth"
	"github.com/AndrewsGM/driver-pro/internal/session"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultRankingLimit = 10
	maxRankingLimit     = 100
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/me", authMiddleware, func(c *fiber.Ctx) error {
		userID := auth.UserID(c)
		list, err := svc.Filter(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if len(list) == 0 {
			return c.JSON(session.Progress{UserID: userID, SubscriptionPlan: "free"})
		}
		return c.JSON(list[0])
	})

	r.Get("/ranking", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", defaultRankingLimit)
		if limit <= 0 {
			limit = defaultRankingLimit
		}
		if limit > maxRankingLimit {
			limit = maxRankingLimit
		}
		ranking, err := svc.Ranking(c.Context(), limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(ranking)
	})
}
