package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/metrics"
	"github.com/david2777/hydra-render-farm/internal/model"
)

// FailureReason describes why a task ended abnormally. It decides the status
// the task is parked in when attempts run out and the status the node drops
// back to.
type FailureReason int

const (
	ReasonExecError FailureReason = iota // non-zero exit code
	ReasonKilled                         // interrupted on request
	ReasonTimeout                        // exceeded the job timeout
	ReasonStale                          // node reaped for a stale pulse
)

func (r FailureReason) String() string {
	switch r {
	case ReasonExecError:
		return "exec-error"
	case ReasonKilled:
		return "killed"
	case ReasonTimeout:
		return "timeout"
	case ReasonStale:
		return "stale"
	}
	return "unknown"
}

// terminalStatus is the status a task keeps when its job has exhausted
// max_attempts.
func (r FailureReason) terminalStatus() model.Status {
	switch r {
	case ReasonKilled:
		return model.StatusKilled
	case ReasonTimeout:
		return model.StatusTimeout
	case ReasonStale:
		return model.StatusCrashed
	}
	return model.StatusError
}

// HandleFailure applies the retry policy after a task ended abnormally on
// host: the host joins the job's failed-node list, the attempt counter
// increments, and the task is either reset to Ready for another node or left
// terminal when attempts are exhausted (which also marks the job Error). The
// failing node's row is cleared and set back to Idle, or Offline when the
// failure came from the staleness reaper. All of it happens in one
// transaction, followed by a progress recount when the task went terminal.
func HandleFailure(ctx context.Context, db *gorm.DB, taskID uint, host string, exitCode int, reason FailureReason) error {
	var jobID uint
	var terminal bool

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.RenderTask
		if err := tx.First(&task, taskID).Error; err != nil {
			return fmt.Errorf("load task %d: %w", taskID, err)
		}

		var job model.RenderJob
		if err := tx.First(&job, task.JobID).Error; err != nil {
			return fmt.Errorf("load job %d: %w", task.JobID, err)
		}
		jobID = job.ID

		job.AddFailedNode(host)
		job.Attempts++
		terminal = job.Attempts >= job.MaxAttempts

		now := time.Now().Truncate(time.Second)
		if terminal {
			job.Status = model.StatusError
			updates := map[string]interface{}{
				"status":    reason.terminalStatus(),
				"exit_code": exitCode,
				"end_time":  now,
			}
			if err := tx.Model(&task).Updates(updates).Error; err != nil {
				return err
			}
		} else {
			updates := map[string]interface{}{
				"status":     model.StatusReady,
				"host":       "",
				"start_time": nil,
				"end_time":   nil,
				"exit_code":  nil,
			}
			if err := tx.Model(&task).Updates(updates).Error; err != nil {
				return err
			}
			metrics.TasksRequeuedTotal.Inc()
		}

		err := tx.Model(&job).Updates(map[string]interface{}{
			"failed_nodes": job.FailedNodes,
			"attempts":     job.Attempts,
			"status":       job.Status,
		}).Error
		if err != nil {
			return err
		}

		return releaseNode(tx, host, reason)
	})
	if err != nil {
		return err
	}

	if terminal {
		return Recount(ctx, db, jobID)
	}
	return nil
}

// releaseNode clears the node's task reference and drops its status out of
// Started. Nodes parked Pending land Offline, as does a node reaped for
// staleness; everything else goes back to Idle. Unknown hosts are ignored so
// a stale-reap of a deregistered node still requeues the task.
func releaseNode(tx *gorm.DB, host string, reason FailureReason) error {
	var node model.RenderNode
	err := tx.Where("host = ?", host).First(&node).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	status := model.StatusIdle
	if reason == ReasonStale || node.Status == model.StatusPending {
		status = model.StatusOffline
	}
	return tx.Model(&node).Updates(map[string]interface{}{
		"task_id": nil,
		"status":  status,
	}).Error
}
