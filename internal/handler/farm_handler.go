package handler

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/logic"
	"github.com/david2777/hydra-render-farm/internal/response"
)

// FarmHandler serves farm-wide endpoints.
type FarmHandler struct {
	db *gorm.DB
}

// NewFarmHandler creates a farm handler.
func NewFarmHandler(db *gorm.DB) *FarmHandler {
	return &FarmHandler{db: db}
}

// Summary returns per-status counts of jobs, tasks and nodes.
// GET /api/summary
func (h *FarmHandler) Summary(c *fiber.Ctx) error {
	summary, err := logic.Summarize(c.UserContext(), h.db)
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, summary)
}
