package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/metrics"
	"github.com/david2777/hydra-render-farm/internal/model"
)

// Heartbeat writes the node's pulse timestamp. A node only ever writes its
// own row, so no coordination is needed.
func Heartbeat(ctx context.Context, db *gorm.DB, nodeID uint) error {
	err := db.WithContext(ctx).Model(&model.RenderNode{}).
		Where("id = ?", nodeID).
		Update("pulse", time.Now()).Error
	if err != nil {
		return err
	}
	metrics.HeartbeatsTotal.Inc()
	return nil
}

// ReapStaleNodes finds working nodes whose pulse is older than threshold and
// treats each as having failed its held task: the task goes through the retry
// policy with the node as the failing party, and the node lands Offline. Any
// process may run this; the farm server runs it on a housekeeping interval.
// Returns the number of nodes reaped.
func ReapStaleNodes(ctx context.Context, db *gorm.DB, threshold time.Duration, log *zap.Logger) (int, error) {
	cutoff := time.Now().Add(-threshold)

	var stale []model.RenderNode
	err := db.WithContext(ctx).
		Where("status IN ? AND (pulse IS NULL OR pulse < ?)",
			[]model.Status{model.StatusStarted, model.StatusPending}, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	reaped := 0
	for i := range stale {
		node := &stale[i]
		log.Warn("reaping stale node",
			zap.String("host", node.Host),
			zap.Timep("pulse", node.Pulse))

		if node.TaskID != nil {
			err := HandleFailure(ctx, db, *node.TaskID, node.Host, model.ExitCodeKilled, ReasonStale)
			if err != nil {
				log.Error("failed to requeue task from stale node",
					zap.String("host", node.Host),
					zap.Uint("task", *node.TaskID),
					zap.Error(err))
				continue
			}
		} else {
			err := db.WithContext(ctx).Model(node).
				Update("status", model.StatusOffline).Error
			if err != nil {
				log.Error("failed to offline stale node", zap.String("host", node.Host), zap.Error(err))
				continue
			}
		}
		metrics.NodesReapedTotal.Inc()
		reaped++
	}
	return reaped, nil
}

// ResetStuck recovers a node that restarted while the store still shows it
// working: its held task is reset to Ready with a sentinel exit code so
// another node can pick it up, and the node row is cleared. Run once at agent
// startup before the poll loop.
func ResetStuck(ctx context.Context, db *gorm.DB, node *model.RenderNode) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(node, node.ID).Error; err != nil {
			return err
		}

		if node.TaskID != nil {
			err := tx.Model(&model.RenderTask{}).
				Where("id = ? AND status = ?", *node.TaskID, model.StatusStarted).
				Updates(map[string]interface{}{
					"status":     model.StatusReady,
					"host":       "",
					"start_time": nil,
					"end_time":   nil,
					"exit_code":  model.ExitCodeStuck,
				}).Error
			if err != nil {
				return err
			}
		}

		status := node.Status
		if status == model.StatusStarted {
			status = model.StatusIdle
		} else if status == model.StatusPending {
			status = model.StatusOffline
		}

		node.TaskID = nil
		node.Status = status
		return tx.Model(node).Updates(map[string]interface{}{
			"task_id": nil,
			"status":  status,
		}).Error
	})
}
