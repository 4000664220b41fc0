package handlers

import (
	"crowdnav-backend/models"
	"crowdnav-backend/services"

	"github.com/gofiber/fiber/v2"
)

// Coord and Grid are wired by main before the routes are served.
var (
	Coord *services.Coordinator
	Grid  *services.GridProvider
)

// HandleSubmitGoals - accept a batch planning request
func HandleSubmitGoals(c *fiber.Ctx) error {
	var req models.GoalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.GoalResponse{
			Success: false,
			Message: "invalid request body",
		})
	}

	requestID, err := Coord.SubmitRequest(&req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.GoalResponse{
			Success: false,
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.GoalResponse{
		Success:   true,
		RequestID: requestID,
	})
}

// HandleCancelGoals - preempt the active request
func HandleCancelGoals(c *fiber.Ctx) error {
	if !Coord.Cancel() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "no active request",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
	})
}

// HandleGetStatus - coordinator state, active request and last result
func HandleGetStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"status":  Coord.Status(),
		"clients": Manager.GetClientCount(),
	})
}
