package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// ConfigPatch - partial runtime reconfiguration of the coordinator
type ConfigPatch struct {
	PlannerFrequency    *float64 `json:"planner_frequency,omitempty"`
	ControllerFrequency *float64 `json:"controller_frequency,omitempty"`
	PublishFeedback     *bool    `json:"publish_feedback,omitempty"`
	Planner             *string  `json:"planner,omitempty"`
	Controller          *string  `json:"controller,omitempty"`
}

// HandleGetConfig - current coordinator configuration
func HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"config":  Coord.Status(),
	})
}

// HandlePatchConfig applies a partial configuration update. A planner or
// controller swap that fails to load keeps the previous implementation and
// fails the whole patch.
func HandlePatchConfig(c *fiber.Ctx) error {
	var patch ConfigPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid request body",
		})
	}

	if patch.Planner != nil {
		if err := Coord.SwapPlanner(*patch.Planner); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
	}
	if patch.Controller != nil {
		if err := Coord.SwapController(*patch.Controller); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
	}
	if patch.PlannerFrequency != nil {
		Coord.SetPlannerFrequency(*patch.PlannerFrequency)
	}
	if patch.ControllerFrequency != nil {
		if err := Coord.SetControllerFrequency(*patch.ControllerFrequency); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}
	}
	if patch.PublishFeedback != nil {
		Coord.SetPublishFeedback(*patch.PublishFeedback)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"config":  Coord.Status(),
	})
}
