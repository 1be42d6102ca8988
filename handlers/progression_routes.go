// handlers/progression_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"forum-progression/middleware"
	"forum-progression/services"

	"github.com/gofiber/fiber/v2"
)

// Clock returns the instant used to derive today's calendar date.
type Clock func() time.Time

// respondError translates service errors into HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var partial *services.PartialGrantFailure
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	case errors.As(err, &partial):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message":          "some milestones were awarded; the rest are queued for retry",
			"metric_type":      partial.MetricType,
			"awarded":          partial.Awarded,
			"failed_threshold": partial.Failed,
		})
	default:
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
			"cause": err.Error(),
		})
	}
}

func queryLimit(c *fiber.Ctx) int {
	n, _ := strconv.Atoi(c.Query("limit"))
	return n
}

func SetupProgressionRoutes(app *fiber.App, engine *services.Engine, now Clock) {
	if now == nil {
		now = time.Now
	}

	// 🔓 Public: level curve lookups for UI display
	app.Get("/levels/:points", func(c *fiber.Ctx) error {
		points, err := strconv.ParseInt(c.Params("points"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "points must be an integer"})
		}
		info, err := engine.Levels.Calc.LevelForPoints(points)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(info)
	})

	// 🔐 Secured: the gateway supplies X-User-ID
	secured := app.Group("/s", middleware.UserContextMiddleware())
	user := secured.Group("/user")

	user.Get("/level", func(c *fiber.Ctx) error {
		prog, err := engine.Levels.GetUserLevel(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prog)
	})

	user.Get("/level/progress", func(c *fiber.Ctx) error {
		p, err := engine.Levels.GetLevelProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	user.Get("/level/history", func(c *fiber.Ctx) error {
		events, err := engine.Levels.GetLevelHistory(c.UserContext(), middleware.UserID(c), queryLimit(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(events)
	})

	user.Post("/streaks/:type/activity", func(c *fiber.Ctx) error {
		rec, err := engine.Streaks.RecordActivity(c.UserContext(), middleware.UserID(c), c.Params("type"), now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	})

	user.Get("/streaks/:type", func(c *fiber.Ctx) error {
		rec, err := engine.Streaks.GetUserStreak(c.UserContext(), middleware.UserID(c), c.Params("type"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	})

	user.Get("/streaks/:type/progress", func(c *fiber.Ctx) error {
		p, err := engine.Streaks.GetStreakProgress(c.UserContext(), middleware.UserID(c), c.Params("type"), now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	user.Post("/milestones/:metric/check", func(c *fiber.Ctx) error {
		var req struct {
			CurrentValue *int64 `json:"current_value"`
		}
		if err := c.BodyParser(&req); err != nil || req.CurrentValue == nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "current_value is required"})
		}
		awarded, err := engine.Milestones.CheckMilestones(c.UserContext(), middleware.UserID(c), c.Params("metric"), *req.CurrentValue)
		if err != nil {
			return respondError(c, err)
		}
		if awarded == nil {
			awarded = []services.MilestoneAwarded{}
		}
		return c.JSON(fiber.Map{"awarded": awarded})
	})

	user.Get("/milestones", func(c *fiber.Ctx) error {
		records, err := engine.Milestones.GetUserMilestones(c.UserContext(), middleware.UserID(c), c.Query("metric"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(records)
	})

	user.Get("/milestones/:metric/progress", func(c *fiber.Ctx) error {
		value, err := strconv.ParseInt(c.Query("value", "0"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "value must be an integer"})
		}
		p, err := engine.Milestones.GetMilestoneProgress(c.UserContext(), middleware.UserID(c), c.Params("metric"), value)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	user.Post("/daily/claim", func(c *fiber.Ctx) error {
		res, err := engine.Daily.ClaimDailyReward(c.UserContext(), middleware.UserID(c), now())
		if err != nil {
			return respondError(c, err)
		}
		switch res.Status {
		case services.ClaimAlreadyClaimed:
			return c.JSON(fiber.Map{"status": res.Status, "message": "already claimed today"})
		case services.ClaimNoRewardConfigured:
			return c.JSON(fiber.Map{"status": res.Status, "streak_day": res.StreakDay, "message": "no reward for this day"})
		}
		return c.JSON(res)
	})

	user.Get("/daily/history", func(c *fiber.Ctx) error {
		claims, err := engine.Daily.GetUserRewardHistory(c.UserContext(), middleware.UserID(c), queryLimit(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(claims)
	})

	user.Get("/daily/next", func(c *fiber.Ctx) error {
		next, err := engine.Daily.GetNextReward(c.UserContext(), middleware.UserID(c), now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(next)
	})

	user.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := engine.Badges.GetUserBadges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badges)
	})

	user.Get("/achievements", func(c *fiber.Ctx) error {
		achievements, err := engine.Badges.GetUserAchievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(achievements)
	})

	// Admin endpoints
	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/grants", func(c *fiber.Ctx) error {
		var req struct {
			UserID  string                  `json:"user_id"`
			Effects []services.RewardEffect `json:"effects"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		for i := range req.Effects {
			req.Effects[i].Source = services.SourceAdmin
		}
		if err := engine.Grants.Apply(c.UserContext(), req.UserID, req.Effects); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "grant applied",
			"user_id": req.UserID,
			"effects": len(req.Effects),
		})
	})

	admin.Delete("/users/:user_id/streaks/:type", func(c *fiber.Ctx) error {
		if err := engine.Streaks.ResetStreak(c.UserContext(), c.Params("user_id"), c.Params("type")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	admin.Post("/reconcile", func(c *fiber.Ctx) error {
		stats, err := engine.Reconcile.RunPending(c.UserContext(), queryLimit(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(stats)
	})
}
