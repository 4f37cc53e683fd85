package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ilearnz_go/database"
	"ilearnz_go/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware logs HTTP requests
func LoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		logrus.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"duration":   duration.String(),
			"ip":         c.IP(),
			"user_agent": c.Get("User-Agent"),
		}).Info("HTTP Request")

		return err
	}
}

// LogActivity records a user action on a resource. Logs are buffered through
// Redis when available and written straight to the database otherwise.
func LogActivity(c *fiber.Ctx, action, resource string, resourceID uint, details interface{}) {
	user, err := GetCurrentUser(c)
	if err != nil {
		// No authenticated user; log as system action
		user = &models.User{BaseModel: models.BaseModel{ID: 0}}
	}

	var detailsJSON models.JSON
	if details != nil {
		if detailsBytes, err := json.Marshal(details); err == nil {
			detailsJSON = detailsBytes
		}
	}

	activityLog := models.ActivityLog{
		UserID:     user.ID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    detailsJSON,
		IPAddress:  c.IP(),
		UserAgent:  c.Get("User-Agent"),
	}

	go func(al models.ActivityLog) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("panic recovered in LogActivity goroutine")
			}
		}()

		if err := cacheActivityLog(al); err != nil {
			if database.DB == nil {
				logrus.Error("database.DB is nil; cannot save activity log to database")
				return
			}
			if dbErr := database.DB.Create(&al).Error; dbErr != nil {
				logrus.WithError(dbErr).Error("Failed to save activity log to database")
			}
		}
	}(activityLog)
}

// cacheActivityLog stores an activity log in Redis with a 24-hour TTL and
// queues it for batch flushing to the database.
func cacheActivityLog(al models.ActivityLog) error {
	redisClient := database.GetRedisClient()
	if redisClient == nil {
		return fmt.Errorf("redis client is nil")
	}
	ctx := context.Background()

	logData, err := json.Marshal(al)
	if err != nil {
		return fmt.Errorf("failed to marshal log: %v", err)
	}

	cacheKey := fmt.Sprintf("log:%d:%s:%d", al.UserID, al.Action, time.Now().UnixNano())

	if err := redisClient.Set(ctx, cacheKey, logData, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to cache log: %v", err)
	}

	if err := redisClient.ZAdd(ctx, "logs:queue", &redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: cacheKey,
	}).Err(); err != nil {
		logrus.WithError(err).Error("Failed to add log to processing queue")
	}

	return nil
}

// FlushCachedLogs drains the Redis log queue into the database. Called by
// the maintenance sweep.
func FlushCachedLogs() (int, error) {
	redisClient := database.GetRedisClient()
	if redisClient == nil {
		return 0, nil
	}
	ctx := context.Background()

	keys, err := redisClient.ZRange(ctx, "logs:queue", 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read log queue: %v", err)
	}

	flushed := 0
	for _, key := range keys {
		data, err := redisClient.Get(ctx, key).Result()
		if err != nil {
			redisClient.ZRem(ctx, "logs:queue", key)
			continue
		}

		var al models.ActivityLog
		if err := json.Unmarshal([]byte(data), &al); err != nil {
			redisClient.ZRem(ctx, "logs:queue", key)
			continue
		}

		if err := database.DB.Create(&al).Error; err != nil {
			logrus.WithError(err).Error("Failed to flush activity log")
			continue
		}

		redisClient.Del(ctx, key)
		redisClient.ZRem(ctx, "logs:queue", key)
		flushed++
	}

	return flushed, nil
}

// LogActivityMiddleware automatically logs mutating requests
func LogActivityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for reads and auth endpoints
		if c.Method() == "GET" || strings.Contains(c.Path(), "/auth/") {
			return c.Next()
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 {
			LogActivity(c, strings.ToLower(c.Method()), c.Path(), 0, nil)
		}

		return err
	}
}
