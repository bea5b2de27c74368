// Package handler wires the management API endpoints to the logic layer.
package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/logic"
	"github.com/david2777/hydra-render-farm/internal/response"
	"github.com/david2777/hydra-render-farm/internal/submit"
	"github.com/david2777/hydra-render-farm/internal/types"
)

// JobHandler serves the job endpoints.
type JobHandler struct {
	jobs *logic.JobLogic
	db   *gorm.DB
}

// NewJobHandler creates a job handler.
func NewJobHandler(jobs *logic.JobLogic, db *gorm.DB) *JobHandler {
	return &JobHandler{jobs: jobs, db: db}
}

// List returns jobs, optionally filtered by owner and archived flag.
// GET /api/jobs
func (h *JobHandler) List(c *fiber.Ctx) error {
	filter := logic.ListFilter{Owner: c.Query("owner")}
	if raw := c.Query("archived"); raw != "" {
		archived, err := strconv.ParseBool(raw)
		if err != nil {
			return response.Error(c, "invalid archived filter")
		}
		filter.Archived = &archived
	}

	jobs, err := h.jobs.List(c.UserContext(), filter)
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewJobViews(jobs))
}

// Get returns one job.
// GET /api/jobs/:id
func (h *JobHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid job id")
	}

	job, err := h.jobs.Get(c.UserContext(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "job not found")
	}
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewJobView(job))
}

// Tasks returns all tasks of one job.
// GET /api/jobs/:id/tasks
func (h *JobHandler) Tasks(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid job id")
	}

	tasks, err := h.jobs.Tasks(c.UserContext(), id)
	if err != nil {
		return response.ServerError(c, err.Error())
	}
	return response.Success(c, types.NewTaskViews(tasks))
}

// Submit creates a new job with its tasks.
// POST /api/jobs
func (h *JobHandler) Submit(c *fiber.Ctx) error {
	var req submit.Request
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "invalid request body")
	}

	job, err := submit.Submit(c.UserContext(), h.db, &req)
	if err != nil {
		return response.Error(c, err.Error())
	}
	return response.Success(c, types.NewJobView(job))
}

// Start resumes a paused or killed job.
// POST /api/jobs/:id/start
func (h *JobHandler) Start(c *fiber.Ctx) error {
	return h.lifecycle(c, h.jobs.Start, "job started")
}

// Pause marks the job so its remaining tasks stop being handed out.
// POST /api/jobs/:id/pause
func (h *JobHandler) Pause(c *fiber.Ctx) error {
	return h.lifecycle(c, h.jobs.Pause, "job paused")
}

// Kill stops the job, interrupting tasks running right now.
// POST /api/jobs/:id/kill
func (h *JobHandler) Kill(c *fiber.Ctx) error {
	return h.lifecycle(c, h.jobs.Kill, "job killed")
}

// Reset returns the job to a clean paused state.
// POST /api/jobs/:id/reset
func (h *JobHandler) Reset(c *fiber.Ctx) error {
	return h.lifecycle(c, h.jobs.Reset, "job reset")
}

// ResetFailedNodes clears the job's failed node list.
// POST /api/jobs/:id/reset-failed-nodes
func (h *JobHandler) ResetFailedNodes(c *fiber.Ctx) error {
	return h.lifecycle(c, h.jobs.ResetFailedNodes, "failed nodes cleared")
}

// Archive hides or unhides the job.
// POST /api/jobs/:id/archive
func (h *JobHandler) Archive(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid job id")
	}

	var body struct {
		Archived bool `json:"archived"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "invalid request body")
	}

	if err := h.jobs.Archive(c.UserContext(), id, body.Archived); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "job archive flag updated", nil)
}

// Prioritize changes the job's priority.
// POST /api/jobs/:id/priority
func (h *JobHandler) Prioritize(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid job id")
	}

	var body struct {
		Priority int `json:"priority"`
	}
	if err := c.BodyParser(&body); err != nil {
		return response.Error(c, "invalid request body")
	}

	if err := h.jobs.Prioritize(c.UserContext(), id, body.Priority); err != nil {
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, "job priority updated", nil)
}

func (h *JobHandler) lifecycle(c *fiber.Ctx, op func(context.Context, uint) error, msg string) error {
	id, err := parseID(c)
	if err != nil {
		return response.Error(c, "invalid job id")
	}
	if err := op(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "job not found")
		}
		return response.Error(c, err.Error())
	}
	return response.SuccessWithMessage(c, msg, nil)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
