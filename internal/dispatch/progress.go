package dispatch

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/metrics"
	"github.com/david2777/hydra-render-farm/internal/model"
)

// Complete records a successful task run reported by host: the task becomes
// Finished with its exit code, end time, and measured minutes per frame; the
// node row is released; and the job's progress is recounted. The job folds
// the task's minutes per frame into its running average.
func Complete(ctx context.Context, db *gorm.DB, taskID uint, host string, exitCode int) error {
	var jobID uint

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.RenderTask
		if err := tx.First(&task, taskID).Error; err != nil {
			return fmt.Errorf("load task %d: %w", taskID, err)
		}
		jobID = task.JobID

		now := time.Now().Truncate(time.Second)
		mpf := 0.0
		if task.StartTime != nil {
			elapsed := now.Sub(*task.StartTime)
			metrics.TaskDurationSeconds.Observe(elapsed.Seconds())
			if frames := task.Frames(); frames > 0 {
				mpf = elapsed.Minutes() / float64(frames)
			}
		}

		err := tx.Model(&task).Updates(map[string]interface{}{
			"status":    model.StatusFinished,
			"exit_code": exitCode,
			"end_time":  now,
			"mpf":       mpf,
		}).Error
		if err != nil {
			return err
		}

		if mpf > 0 {
			var job model.RenderJob
			if err := tx.First(&job, task.JobID).Error; err != nil {
				return err
			}
			avg := mpf
			if job.MPF > 0 {
				avg = (job.MPF + mpf) / 2
			}
			if err := tx.Model(&job).Update("mpf", avg).Error; err != nil {
				return err
			}
		}

		return releaseNode(tx, host, ReasonExecError)
	})
	if err != nil {
		return err
	}

	metrics.TasksCompletedTotal.WithLabelValues("finished").Inc()
	return Recount(ctx, db, jobID)
}

// Recount recomputes the job's derived progress from its tasks: task_done is
// the count of Finished tasks, and the job becomes Finished once every task
// is done. It recounts rather than increments, so concurrent completion
// reports converge on the correct value, and running it twice on an unchanged
// task set changes nothing.
func Recount(ctx context.Context, db *gorm.DB, jobID uint) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.RenderJob
		if err := tx.First(&job, jobID).Error; err != nil {
			return fmt.Errorf("load job %d: %w", jobID, err)
		}

		var done int64
		err := tx.Model(&model.RenderTask{}).
			Where("job_id = ? AND status = ?", jobID, model.StatusFinished).
			Count(&done).Error
		if err != nil {
			return err
		}

		updates := map[string]interface{}{"task_done": done}
		if job.TaskTotal > 0 && done == int64(job.TaskTotal) {
			updates["status"] = model.StatusFinished
		}
		return tx.Model(&job).Updates(updates).Error
	})
}
