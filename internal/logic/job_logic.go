// Package logic implements the management operations the console surface
// performs against the shared store: job and task lifecycle changes, node
// administration, and farm status summaries. Every operation takes the store
// handle it was constructed with; nothing here keeps scheduling state.
package logic

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// JobLogic drives job lifecycle transitions.
type JobLogic struct {
	db    *gorm.DB
	tasks *TaskLogic
	log   *zap.Logger
}

// NewJobLogic builds job logic sharing the task logic's kill path.
func NewJobLogic(db *gorm.DB, tasks *TaskLogic, log *zap.Logger) *JobLogic {
	return &JobLogic{db: db, tasks: tasks, log: log}
}

// ListFilter narrows job listings.
type ListFilter struct {
	Owner    string
	Archived *bool
}

// List returns jobs matching the filter, newest first.
func (l *JobLogic) List(ctx context.Context, filter ListFilter) ([]model.RenderJob, error) {
	q := l.db.WithContext(ctx).Order("id DESC")
	if filter.Owner != "" {
		q = q.Where("owner = ?", filter.Owner)
	}
	if filter.Archived != nil {
		q = q.Where("archived = ?", *filter.Archived)
	}
	var jobs []model.RenderJob
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get returns one job.
func (l *JobLogic) Get(ctx context.Context, id uint) (*model.RenderJob, error) {
	var job model.RenderJob
	if err := l.db.WithContext(ctx).First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Tasks returns the job's tasks in frame order.
func (l *JobLogic) Tasks(ctx context.Context, jobID uint) ([]model.RenderTask, error) {
	var tasks []model.RenderTask
	err := l.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Start moves a paused or killed job and its paused/killed tasks back to
// Ready so nodes can claim them.
func (l *JobLogic) Start(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.RenderJob
		if err := tx.First(&job, id).Error; err != nil {
			return err
		}
		if job.Status != model.StatusPaused && job.Status != model.StatusKilled {
			return fmt.Errorf("logic: job %d is %s, not startable", id, job.Status.NiceName())
		}

		if err := tx.Model(&job).Update("status", model.StatusReady).Error; err != nil {
			return err
		}
		return tx.Model(&model.RenderTask{}).
			Where("job_id = ? AND status IN ?", id, []model.Status{model.StatusPaused, model.StatusKilled}).
			Update("status", model.StatusReady).Error
	})
}

// Pause holds a job: Ready tasks stop being claimable, running tasks are left
// to finish.
func (l *JobLogic) Pause(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job model.RenderJob
		if err := tx.First(&job, id).Error; err != nil {
			return err
		}
		if job.Status != model.StatusReady && job.Status != model.StatusStarted && job.Status != model.StatusKilled {
			return fmt.Errorf("logic: job %d is %s, not pausable", id, job.Status.NiceName())
		}

		if err := tx.Model(&job).Update("status", model.StatusPaused).Error; err != nil {
			return err
		}
		return tx.Model(&model.RenderTask{}).
			Where("job_id = ? AND status IN ?", id, []model.Status{model.StatusReady, model.StatusKilled}).
			Update("status", model.StatusPaused).Error
	})
}

// Kill stops the job: every running task is killed through the out-of-band
// channel (or marked dead when the node is unreachable) and all non-finished
// tasks plus the job land in Killed.
func (l *JobLogic) Kill(ctx context.Context, id uint) error {
	tasks, err := l.Tasks(ctx, id)
	if err != nil {
		return err
	}

	for i := range tasks {
		if tasks[i].Status != model.StatusStarted {
			continue
		}
		if err := l.tasks.Kill(ctx, tasks[i].ID); err != nil {
			l.log.Warn("kill task failed", zap.Uint("task", tasks[i].ID), zap.Error(err))
		}
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&model.RenderTask{}).
			Where("job_id = ? AND status NOT IN ?", id,
				[]model.Status{model.StatusFinished, model.StatusKilled}).
			Update("status", model.StatusKilled).Error
		if err != nil {
			return err
		}
		return tx.Model(&model.RenderJob{}).
			Where("id = ?", id).
			Update("status", model.StatusKilled).Error
	})
}

// Reset returns the job to a freshly submitted, paused state: counters and
// the failed-node list are cleared and every task is wiped back to Paused.
// Running tasks must be killed first.
func (l *JobLogic) Reset(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var running int64
		err := tx.Model(&model.RenderTask{}).
			Where("job_id = ? AND status = ?", id, model.StatusStarted).
			Count(&running).Error
		if err != nil {
			return err
		}
		if running > 0 {
			return fmt.Errorf("logic: job %d still has %d running tasks, kill them first", id, running)
		}

		err = tx.Model(&model.RenderTask{}).
			Where("job_id = ?", id).
			Updates(map[string]interface{}{
				"status":     model.StatusPaused,
				"host":       "",
				"start_time": nil,
				"end_time":   nil,
				"exit_code":  nil,
				"mpf":        0,
			}).Error
		if err != nil {
			return err
		}

		return tx.Model(&model.RenderJob{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":       model.StatusPaused,
				"attempts":     0,
				"failed_nodes": "",
				"task_done":    0,
				"mpf":          0,
			}).Error
	})
}

// Archive hides or unhides the job from farm views.
func (l *JobLogic) Archive(ctx context.Context, id uint, archived bool) error {
	return l.db.WithContext(ctx).Model(&model.RenderJob{}).
		Where("id = ?", id).
		Update("archived", archived).Error
}

// Prioritize updates the job's priority.
func (l *JobLogic) Prioritize(ctx context.Context, id uint, priority int) error {
	return l.db.WithContext(ctx).Model(&model.RenderJob{}).
		Where("id = ?", id).
		Update("priority", priority).Error
}

// ResetFailedNodes clears the job's failed-node list. This is the one
// sanctioned exception to the list being append-only; it lets a job retry on
// nodes that failed it after an environmental fix.
func (l *JobLogic) ResetFailedNodes(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Model(&model.RenderJob{}).
		Where("id = ?", id).
		Update("failed_nodes", "").Error
}
