package handlers

import (
	"strconv"
	"time"

	"crowdnav-backend/services"

	"github.com/gofiber/fiber/v2"
)

// HandleGetRecentLogs - latest events of one request
func HandleGetRecentLogs(c *fiber.Ctx) error {
	requestID := c.Query("request_id")
	limitStr := c.Query("limit", "100")

	if requestID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "request_id parameter is required",
		})
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 100
	}

	events, err := services.GetRecentLogs(requestID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(events),
		"events":  events,
	})
}

// HandleGetLogsByTimeRange - events within a time window
func HandleGetLogsByTimeRange(c *fiber.Ctx) error {
	requestID := c.Query("request_id")
	startStr := c.Query("start") // RFC3339 format
	endStr := c.Query("end")     // RFC3339 format
	limitStr := c.Query("limit", "100")

	var start time.Time
	if startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid start time format (use RFC3339)",
			})
		}
		start = parsed
	} else {
		start = time.Now().Add(-24 * time.Hour)
	}

	var end time.Time
	if endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid end time format (use RFC3339)",
			})
		}
		end = parsed
	} else {
		end = time.Now()
	}

	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = 100
	}

	events, err := services.GetLogsByTimeRange(requestID, start, end, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(events),
		"time_range": fiber.Map{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
		"events": events,
	})
}

// HandleGetLogsByEventType - events filtered by event type
func HandleGetLogsByEventType(c *fiber.Ctx) error {
	requestID := c.Query("request_id")
	eventType := c.Query("event_type")
	limitStr := c.Query("limit", "100")

	if eventType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "event_type parameter is required",
		})
	}

	limit, _ := strconv.Atoi(limitStr)
	if limit <= 0 {
		limit = 100
	}

	events, err := services.GetLogsByEventType(requestID, eventType, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch events",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"count":      len(events),
		"event_type": eventType,
		"events":     events,
	})
}

// HandleGetLogStats - event counts over a recent window
func HandleGetLogStats(c *fiber.Ctx) error {
	hoursStr := c.Query("hours", "24")

	hours, err := strconv.Atoi(hoursStr)
	if err != nil || hours <= 0 {
		hours = 24
	}

	stats, err := services.GetLogStats(hours)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}
