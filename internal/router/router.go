// Package router assembles the management API.
package router

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/config"
	"github.com/david2777/hydra-render-farm/internal/handler"
	"github.com/david2777/hydra-render-farm/internal/logic"
)

// Setup registers middleware and every management API route on app.
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"app":    cfg.App.Name,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	taskLogic := logic.NewTaskLogic(db, cfg.Node.WirePort, log)
	jobLogic := logic.NewJobLogic(db, taskLogic, log)
	nodeLogic := logic.NewNodeLogic(db, taskLogic, log)

	jobHandler := handler.NewJobHandler(jobLogic, db)
	taskHandler := handler.NewTaskHandler(taskLogic)
	nodeHandler := handler.NewNodeHandler(nodeLogic)
	farmHandler := handler.NewFarmHandler(db)

	api := app.Group("/api")

	api.Get("/summary", farmHandler.Summary)

	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.List)
	jobs.Post("/", jobHandler.Submit)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Get("/:id/tasks", jobHandler.Tasks)
	jobs.Post("/:id/start", jobHandler.Start)
	jobs.Post("/:id/pause", jobHandler.Pause)
	jobs.Post("/:id/kill", jobHandler.Kill)
	jobs.Post("/:id/reset", jobHandler.Reset)
	jobs.Post("/:id/reset-failed-nodes", jobHandler.ResetFailedNodes)
	jobs.Post("/:id/archive", jobHandler.Archive)
	jobs.Post("/:id/priority", jobHandler.Prioritize)

	tasks := api.Group("/tasks")
	tasks.Get("/:id", taskHandler.Get)
	tasks.Post("/:id/start", taskHandler.Start)
	tasks.Post("/:id/pause", taskHandler.Pause)
	tasks.Post("/:id/reset", taskHandler.Reset)
	tasks.Post("/:id/kill", taskHandler.Kill)

	nodes := api.Group("/nodes")
	nodes.Get("/", nodeHandler.List)
	nodes.Get("/capabilities", nodeHandler.Capabilities)
	nodes.Get("/:id", nodeHandler.Get)
	nodes.Put("/:id", nodeHandler.Update)
	nodes.Post("/:id/online", nodeHandler.Online)
	nodes.Post("/:id/offline", nodeHandler.Offline)
	nodes.Post("/:id/getoff", nodeHandler.GetOff)
}
