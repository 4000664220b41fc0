package handlers

import (
	"log"
	"time"

	"crowdnav-backend/models"
	"crowdnav-backend/services"

	"github.com/gofiber/fiber/v2"
)

// HandleGetMap - active cost grid metadata and obstacle list
func HandleGetMap(c *fiber.Ctx) error {
	grid := Grid.Snapshot()
	if grid == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "no active map",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"map":     grid,
	})
}

// HandleClearMap rebuilds the cell costs from the static obstacle list,
// discarding transient cost data, and notifies connected clients.
func HandleClearMap(c *fiber.Ctx) error {
	if err := Grid.Clear(); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": err.Error(),
		})
	}

	grid := Grid.Snapshot()
	services.LogMapEvent("map_cleared", grid.Frame, fiber.Map{"map_id": grid.ID})
	log.Printf("🧹 map %s cleared", grid.ID)

	Manager.BroadcastMessage(models.WebSocketMessage{
		Type:      models.MessageTypeMapUpdate,
		Data:      grid,
		Timestamp: time.Now().UnixMilli(),
	})

	return c.JSON(fiber.Map{
		"success": true,
		"map":     grid,
	})
}
