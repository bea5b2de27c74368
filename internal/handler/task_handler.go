package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/logic"
	"github.com/david2777/hydra-render-farm/internal/response"
	"github.com/david2777/hydra-render-farm/internal/types"
)

// TaskHandler serves the task endpoints.
type TaskHandler struct {
	tasks *logic.TaskLogic
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(tasks *logic.TaskLogic) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// Get returns one task.
// GET /api/tasks/:id
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid task id")
	}

	task, err := h.tasks.Get(c.UserContext(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "task not found")
	}
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewTaskView(task))
}

// Start resumes a paused or killed task.
// POST /api/tasks/:id/start
func (h *TaskHandler) Start(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid task id")
	}
	if err := h.tasks.Start(c.UserContext(), id); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "task started", nil)
}

// Pause marks a waiting task so it stops being handed out.
// POST /api/tasks/:id/pause
func (h *TaskHandler) Pause(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid task id")
	}
	if err := h.tasks.Pause(c.UserContext(), id); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "task paused", nil)
}

// Reset wipes a non-running task back to a clean paused state.
// POST /api/tasks/:id/reset
func (h *TaskHandler) Reset(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid task id")
	}
	if err := h.tasks.Reset(c.UserContext(), id); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "task reset", nil)
}

// Kill stops the task, interrupting it on its node if running.
// POST /api/tasks/:id/kill
func (h *TaskHandler) Kill(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid task id")
	}
	if err := h.tasks.Kill(c.UserContext(), id); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "task killed", nil)
}
