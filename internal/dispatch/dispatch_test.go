package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/store/storetest"
)

func createJob(t *testing.T, db *gorm.DB, job *model.RenderJob) *model.RenderJob {
	t.Helper()
	if job.Status == "" {
		job.Status = model.StatusReady
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = 10
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func createTask(t *testing.T, db *gorm.DB, task *model.RenderTask) *model.RenderTask {
	t.Helper()
	if task.Status == "" {
		task.Status = model.StatusReady
	}
	require.NoError(t, db.Create(task).Error)
	return task
}

func createNode(t *testing.T, db *gorm.DB, node *model.RenderNode) *model.RenderNode {
	t.Helper()
	if node.Status == "" {
		node.Status = model.StatusIdle
	}
	node.IsRenderNode = true
	require.NoError(t, db.Create(node).Error)
	return node
}

// startedTask creates a task already claimed by host, with the node row
// pointing back at it.
func startedTask(t *testing.T, db *gorm.DB, jobID uint, node *model.RenderNode) *model.RenderTask {
	t.Helper()
	start := time.Now().Add(-2 * time.Minute).Truncate(time.Second)
	task := createTask(t, db, &model.RenderTask{
		JobID:      jobID,
		Status:     model.StatusStarted,
		Host:       node.Host,
		StartFrame: 1,
		EndFrame:   1,
		StartTime:  &start,
	})
	node.Status = model.StatusStarted
	node.TaskID = &task.ID
	require.NoError(t, db.Model(node).Updates(map[string]interface{}{
		"status":  model.StatusStarted,
		"task_id": task.ID,
	}).Error)
	return task
}

func reloadJob(t *testing.T, db *gorm.DB, id uint) *model.RenderJob {
	t.Helper()
	var job model.RenderJob
	require.NoError(t, db.First(&job, id).Error)
	return &job
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) *model.RenderTask {
	t.Helper()
	var task model.RenderTask
	require.NoError(t, db.First(&task, id).Error)
	return &task
}

func reloadNode(t *testing.T, db *gorm.DB, id uint) *model.RenderNode {
	t.Helper()
	var node model.RenderNode
	require.NoError(t, db.First(&node, id).Error)
	return &node
}

func testDB(t *testing.T) *gorm.DB {
	return storetest.New(t)
}
