// Package submit decomposes a job request into its job and task rows and
// inserts them in a single transaction, so no poll cycle ever observes a job
// without its tasks.
package submit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// maxScriptLen bounds the inline script column.
const maxScriptLen = 2048

// Request describes a job to submit.
type Request struct {
	Name         string
	Owner        string
	Mode         string
	Requirements []string
	Priority     int
	MaxNodes     int
	Timeout      int // seconds, 0 = unlimited
	MaxAttempts  int
	StartPaused  bool

	// Maya Render fields.
	TaskFile        string
	StartFrame      int
	EndFrame        int
	ByFrame         int
	RenderLayers    string
	Project         string
	OutputDirectory string
	Args            string

	// MayaPy / Command field.
	Script string
}

// Submit validates the request, decomposes it into one task per scheduled
// frame, and inserts the job and its tasks atomically. Jobs submitted paused
// sit in Paused until started from the management surface; otherwise the job
// and tasks are immediately Ready for claiming.
func Submit(ctx context.Context, db *gorm.DB, req *Request) (*model.RenderJob, error) {
	frames, err := validate(req)
	if err != nil {
		return nil, err
	}

	status := model.StatusReady
	if req.StartPaused {
		status = model.StatusPaused
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	job := &model.RenderJob{
		Name:         req.Name,
		Owner:        req.Owner,
		Status:       status,
		Requirements: model.JoinTokens(req.Requirements),
		Priority:     req.Priority,
		MaxNodes:     req.MaxNodes,
		Timeout:      req.Timeout,
		MaxAttempts:  maxAttempts,
		TaskTotal:    len(frames),

		Args:            req.Args,
		TaskFile:        req.TaskFile,
		StartFrame:      req.StartFrame,
		EndFrame:        req.EndFrame,
		ByFrame:         req.ByFrame,
		RenderLayers:    req.RenderLayers,
		OutputDirectory: req.OutputDirectory,
		Project:         req.Project,
		Script:          req.Script,
		Mode:            req.Mode,
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		tasks := make([]model.RenderTask, len(frames))
		for i, frame := range frames {
			tasks[i] = model.RenderTask{
				JobID:      job.ID,
				Status:     status,
				Priority:   req.Priority,
				StartFrame: frame,
				EndFrame:   frame,
			}
		}
		return tx.Create(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// validate checks the request and returns the scheduled frame list. Modes
// without a frame range schedule a single task with the sentinel frame -1.
func validate(req *Request) ([]int, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("submit: job name is required")
	}
	if len(req.Script) > maxScriptLen {
		return nil, fmt.Errorf("submit: script cannot be longer than %d characters", maxScriptLen)
	}

	switch req.Mode {
	case model.ModeMayaRender:
		if req.TaskFile == "" {
			return nil, fmt.Errorf("submit: %s jobs require a scene file", req.Mode)
		}
		return FrameList(req.StartFrame, req.EndFrame, req.ByFrame)
	case model.ModeMayaPy, model.ModeCommand:
		if req.Script == "" {
			return nil, fmt.Errorf("submit: %s jobs require a script", req.Mode)
		}
		return []int{-1}, nil
	default:
		return nil, fmt.Errorf("submit: unknown job mode %q", req.Mode)
	}
}

// FrameList expands start/end/by into the scheduled frames. The end frame is
// always included even when the step would skip past it.
func FrameList(start, end, by int) ([]int, error) {
	if start > end {
		return nil, fmt.Errorf("submit: start frame %d cannot be after end frame %d", start, end)
	}
	if by <= 0 {
		by = 1
	}
	var frames []int
	for f := start; f <= end; f += by {
		frames = append(frames, f)
	}
	if frames[len(frames)-1] != end {
		frames = append(frames, end)
	}
	return frames, nil
}
