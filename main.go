package main

import (
	"log"
	"os"
	"time"

	"crowdnav-backend/handlers"
	"crowdnav-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  no .env file found")
	}

	// Event persistence is optional: without MySQL the coordinator still
	// runs, the event log API is just unavailable.
	if err := services.InitDatabase(); err != nil {
		log.Printf("⚠️ event store disabled: %v", err)
	}

	// flushSize: 50, flushInterval: 10s
	services.InitLogging(50, 10*time.Second)
	defer services.StopLogging()

	// cost grid: from a YAML map file when configured, random arena otherwise
	grid := services.NewGridProvider()
	if mapFile := os.Getenv("MAP_FILE"); mapFile != "" {
		if err := grid.LoadMapFile(mapFile); err != nil {
			log.Fatalf("❌ failed to load map: %v", err)
		}
	} else {
		grid.GenerateMap(200, 200, 0.1, "map", 12)
	}

	tf := services.NewStaticTransformer()
	tf.RegisterFrame(grid.GlobalFrame(), services.FrameOffset{})

	planners := services.NewPlannerRegistry()
	planners.Register("multigoal", func(g *services.GridProvider) services.Planner {
		return services.NewMultiGoalPlanner(g)
	})

	controllers := services.NewControllerRegistry()
	var sim *services.SimController
	controllers.Register("sim", func(g *services.GridProvider) services.Controller {
		sim = services.NewSimController(g)
		return sim
	})

	coord, err := services.NewCoordinator(services.ConfigFromEnv(), grid, tf, planners, controllers)
	if err != nil {
		log.Fatalf("❌ coordinator setup failed: %v", err)
	}

	handlers.Coord = coord
	handlers.Grid = grid
	coord.SetBroadcast(handlers.Manager.BroadcastMessage)

	coord.Start()
	defer coord.Stop()
	if sim != nil {
		sim.Start()
		defer sim.Stop()
	}

	app := fiber.New()

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "http://localhost:5173, http://localhost:3000",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PATCH, DELETE, OPTIONS",
	}))

	go handlers.Manager.Start()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("crowdnav planning server is running.")
	})

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "OK",
			"clients": handlers.Manager.GetClientCount(),
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	// planning requests
	api.Post("/goals", handlers.HandleSubmitGoals)
	api.Post("/goals/cancel", handlers.HandleCancelGoals)
	api.Get("/status", handlers.HandleGetStatus)

	// map
	api.Get("/map", handlers.HandleGetMap)
	api.Post("/map/clear", handlers.HandleClearMap)

	// runtime configuration
	api.Get("/config", handlers.HandleGetConfig)
	api.Patch("/config", handlers.HandlePatchConfig)

	// event log API
	logsAPI := api.Group("/logs")
	logsAPI.Get("/recent", handlers.HandleGetRecentLogs)
	logsAPI.Get("/range", handlers.HandleGetLogsByTimeRange)
	logsAPI.Get("/type", handlers.HandleGetLogsByEventType)
	logsAPI.Get("/stats", handlers.HandleGetLogStats)

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/websocket/web", websocket.New(handlers.HandleWebClientWebSocket))

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 server started: http://localhost:%s", port)
	log.Printf("📡 WebSocket: ws://localhost:%s/websocket/web", port)
	log.Printf("🎯 goal API: POST http://localhost:%s/api/goals", port)
	log.Printf("💾 log API: GET http://localhost:%s/api/logs/*", port)
	log.Fatal(app.Listen(":" + port))
}
