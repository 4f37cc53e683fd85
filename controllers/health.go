package controllers

import (
	"context"
	"time"

	"ilearnz_go/database"

	"github.com/gofiber/fiber/v2"
)

type HealthController struct{}

// GetHealth reports service, database and cache status
func (hc *HealthController) GetHealth(c *fiber.Ctx) error {
	dbStatus := "ok"
	if sqlDB, err := database.DB.DB(); err != nil {
		dbStatus = "error"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error"
	}

	redisStatus := "disabled"
	if rc := database.GetRedisClient(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Ping(ctx).Err(); err != nil {
			redisStatus = "error"
		} else {
			redisStatus = "ok"
		}
	}

	status := fiber.StatusOK
	if dbStatus != "ok" {
		status = fiber.StatusServiceUnavailable
	}

	return c.Status(status).JSON(fiber.Map{
		"service":  "iLearnZ API",
		"database": dbStatus,
		"redis":    redisStatus,
		"time":     time.Now().UTC(),
	})
}
