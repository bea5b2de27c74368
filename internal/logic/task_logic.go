package logic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/wire"
)

// TaskLogic drives single-task transitions, including the out-of-band kill.
type TaskLogic struct {
	db       *gorm.DB
	wirePort int
	log      *zap.Logger
}

// NewTaskLogic builds task logic. wirePort is the TCP port node agents
// listen on for out-of-band commands.
func NewTaskLogic(db *gorm.DB, wirePort int, log *zap.Logger) *TaskLogic {
	return &TaskLogic{db: db, wirePort: wirePort, log: log}
}

// Get returns one task.
func (l *TaskLogic) Get(ctx context.Context, id uint) (*model.RenderTask, error) {
	var task model.RenderTask
	if err := l.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// Start moves a paused or killed task back to Ready, pulling its job along
// when the job is parked too.
func (l *TaskLogic) Start(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.RenderTask
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		if task.Status != model.StatusPaused && task.Status != model.StatusKilled {
			return fmt.Errorf("logic: task %d is %s, not startable", id, task.Status.NiceName())
		}

		if err := tx.Model(&task).Update("status", model.StatusReady).Error; err != nil {
			return err
		}
		return tx.Model(&model.RenderJob{}).
			Where("id = ? AND status IN ?", task.JobID,
				[]model.Status{model.StatusPaused, model.StatusKilled}).
			Update("status", model.StatusReady).Error
	})
}

// Pause holds a Ready or Killed task.
func (l *TaskLogic) Pause(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.RenderTask
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		if task.Status != model.StatusReady && task.Status != model.StatusKilled {
			return fmt.Errorf("logic: task %d is %s, not pausable", id, task.Status.NiceName())
		}
		return tx.Model(&task).Update("status", model.StatusPaused).Error
	})
}

// Kill interrupts the task. For a running task the node is asked over the
// out-of-band channel to kill its child process and update its own rows; an
// unreachable node is treated as dead and the rows are forced here instead.
// Non-running, non-finished tasks simply land in Killed.
func (l *TaskLogic) Kill(ctx context.Context, id uint) error {
	task, err := l.Get(ctx, id)
	if err != nil {
		return err
	}

	switch task.Status {
	case model.StatusStarted:
		if l.askNodeToKill(ctx, task) {
			return nil
		}
		return l.markDead(ctx, task)
	case model.StatusFinished, model.StatusKilled:
		return nil
	default:
		return l.db.WithContext(ctx).Model(task).Update("status", model.StatusKilled).Error
	}
}

// askNodeToKill sends the kill over the wire. True means the node accepted
// responsibility for updating its own rows.
func (l *TaskLogic) askNodeToKill(ctx context.Context, task *model.RenderTask) bool {
	var node model.RenderNode
	err := l.db.WithContext(ctx).Where("host = ?", task.Host).First(&node).Error
	if err != nil || node.IPAddr == "" {
		l.log.Warn("no reachable node for running task",
			zap.Uint("task", task.ID), zap.String("host", task.Host))
		return false
	}
	if node.TaskID == nil || *node.TaskID != task.ID {
		l.log.Warn("node is not running the task it is assigned, marking dead",
			zap.Uint("task", task.ID), zap.String("host", task.Host))
		return false
	}

	addr := fmt.Sprintf("%s:%d", node.IPAddr, l.wirePort)
	resp, err := wire.Send(ctx, addr, wire.NewRequest(wire.CmdKillTask))
	if err != nil {
		l.log.Warn("node unreachable for kill, treating as dead",
			zap.String("addr", addr), zap.Error(err))
		return false
	}
	if resp.Err {
		l.log.Warn("node failed to kill its task", zap.String("host", task.Host), zap.String("msg", resp.Msg))
		return false
	}
	return true
}

// markDead forces the task and any node still pointing at it into a killed
// state when the node cannot do it itself.
func (l *TaskLogic) markDead(ctx context.Context, task *model.RenderTask) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().Truncate(time.Second)
		err := tx.Model(task).Updates(map[string]interface{}{
			"status":    model.StatusKilled,
			"exit_code": model.ExitCodeKilled,
			"end_time":  now,
		}).Error
		if err != nil {
			return err
		}
		return tx.Model(&model.RenderNode{}).
			Where("host = ? AND task_id = ?", task.Host, task.ID).
			Updates(map[string]interface{}{
				"task_id": nil,
				"status":  model.StatusOffline,
			}).Error
	})
}

// Reset wipes a non-running task back to a clean Paused state.
func (l *TaskLogic) Reset(ctx context.Context, id uint) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.RenderTask
		if err := tx.First(&task, id).Error; err != nil {
			return err
		}
		if task.Status == model.StatusStarted {
			return fmt.Errorf("logic: task %d is running, kill it first", id)
		}
		return tx.Model(&task).Updates(map[string]interface{}{
			"status":     model.StatusPaused,
			"host":       "",
			"start_time": nil,
			"end_time":   nil,
			"exit_code":  nil,
			"mpf":        0,
		}).Error
	})
}
