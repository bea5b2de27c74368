package logic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/store/storetest"
)

func newLogics(t *testing.T) (*gorm.DB, *JobLogic, *TaskLogic, *NodeLogic) {
	t.Helper()
	db := storetest.New(t)
	tasks := NewTaskLogic(db, 0, zap.NewNop())
	jobs := NewJobLogic(db, tasks, zap.NewNop())
	nodes := NewNodeLogic(db, tasks, zap.NewNop())
	return db, jobs, tasks, nodes
}

func seedJob(t *testing.T, db *gorm.DB, status model.Status, taskStatuses ...model.Status) (*model.RenderJob, []model.RenderTask) {
	t.Helper()
	job := &model.RenderJob{Name: "job", Status: status, MaxAttempts: 10, TaskTotal: len(taskStatuses)}
	require.NoError(t, db.Create(job).Error)

	tasks := make([]model.RenderTask, len(taskStatuses))
	for i, s := range taskStatuses {
		tasks[i] = model.RenderTask{JobID: job.ID, Status: s, StartFrame: i + 1, EndFrame: i + 1}
		require.NoError(t, db.Create(&tasks[i]).Error)
	}
	return job, tasks
}

func taskStatus(t *testing.T, db *gorm.DB, id uint) model.Status {
	t.Helper()
	var task model.RenderTask
	require.NoError(t, db.First(&task, id).Error)
	return task.Status
}

func jobStatus(t *testing.T, db *gorm.DB, id uint) model.Status {
	t.Helper()
	var job model.RenderJob
	require.NoError(t, db.First(&job, id).Error)
	return job.Status
}

func TestJobLogic_StartAndPause(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, tasks := seedJob(t, db, model.StatusPaused, model.StatusPaused, model.StatusPaused)

	require.NoError(t, jobs.Start(ctx, job.ID))
	assert.Equal(t, model.StatusReady, jobStatus(t, db, job.ID))
	assert.Equal(t, model.StatusReady, taskStatus(t, db, tasks[0].ID))

	require.NoError(t, jobs.Pause(ctx, job.ID))
	assert.Equal(t, model.StatusPaused, jobStatus(t, db, job.ID))
	assert.Equal(t, model.StatusPaused, taskStatus(t, db, tasks[1].ID))
}

func TestJobLogic_StartRejectsWrongState(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, _ := seedJob(t, db, model.StatusFinished, model.StatusFinished)
	assert.Error(t, jobs.Start(ctx, job.ID))
}

func TestJobLogic_PauseLeavesRunningTasks(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, tasks := seedJob(t, db, model.StatusStarted, model.StatusStarted, model.StatusReady)

	require.NoError(t, jobs.Pause(ctx, job.ID))
	assert.Equal(t, model.StatusStarted, taskStatus(t, db, tasks[0].ID), "running work finishes on its own")
	assert.Equal(t, model.StatusPaused, taskStatus(t, db, tasks[1].ID))
}

func TestJobLogic_Kill(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	// The running task's host has no node row, so the kill falls back to
	// marking it dead locally.
	job, tasks := seedJob(t, db, model.StatusStarted,
		model.StatusStarted, model.StatusReady, model.StatusFinished)
	require.NoError(t, db.Model(&tasks[0]).Update("host", "gone").Error)

	require.NoError(t, jobs.Kill(ctx, job.ID))

	assert.Equal(t, model.StatusKilled, jobStatus(t, db, job.ID))
	assert.Equal(t, model.StatusKilled, taskStatus(t, db, tasks[0].ID))
	assert.Equal(t, model.StatusKilled, taskStatus(t, db, tasks[1].ID))
	assert.Equal(t, model.StatusFinished, taskStatus(t, db, tasks[2].ID), "finished work is left alone")
}

func TestJobLogic_Reset(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, tasks := seedJob(t, db, model.StatusError, model.StatusError, model.StatusFinished)
	require.NoError(t, db.Model(job).Updates(map[string]interface{}{
		"attempts":     10,
		"failed_nodes": "node-01 node-02",
		"task_done":    1,
		"mpf":          2.5,
	}).Error)

	require.NoError(t, jobs.Reset(ctx, job.ID))

	var got model.RenderJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Equal(t, model.StatusPaused, got.Status)
	assert.Zero(t, got.Attempts)
	assert.Empty(t, got.FailedNodes)
	assert.Zero(t, got.TaskDone)
	assert.Zero(t, got.MPF)

	for _, task := range tasks {
		assert.Equal(t, model.StatusPaused, taskStatus(t, db, task.ID))
	}
}

func TestJobLogic_ResetRefusesRunningTasks(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, _ := seedJob(t, db, model.StatusStarted, model.StatusStarted)
	assert.Error(t, jobs.Reset(ctx, job.ID))
}

func TestJobLogic_ResetFailedNodes(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	job, _ := seedJob(t, db, model.StatusStarted)
	require.NoError(t, db.Model(job).Update("failed_nodes", "node-01 node-02").Error)

	require.NoError(t, jobs.ResetFailedNodes(ctx, job.ID))

	var got model.RenderJob
	require.NoError(t, db.First(&got, job.ID).Error)
	assert.Empty(t, got.FailedNodes)
}

func TestJobLogic_ListFilters(t *testing.T) {
	db, jobs, _, _ := newLogics(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.RenderJob{Name: "a", Owner: "alice", Status: model.StatusReady}).Error)
	require.NoError(t, db.Create(&model.RenderJob{Name: "b", Owner: "bob", Status: model.StatusReady}).Error)
	require.NoError(t, db.Create(&model.RenderJob{Name: "c", Owner: "alice", Status: model.StatusFinished, Archived: true}).Error)

	all, err := jobs.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	alice, err := jobs.List(ctx, ListFilter{Owner: "alice"})
	require.NoError(t, err)
	assert.Len(t, alice, 2)

	live := false
	active, err := jobs.List(ctx, ListFilter{Archived: &live})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTaskLogic_StartPullsJobAlong(t *testing.T) {
	db, _, tasks, _ := newLogics(t)
	ctx := context.Background()

	job, rows := seedJob(t, db, model.StatusKilled, model.StatusKilled)

	require.NoError(t, tasks.Start(ctx, rows[0].ID))
	assert.Equal(t, model.StatusReady, taskStatus(t, db, rows[0].ID))
	assert.Equal(t, model.StatusReady, jobStatus(t, db, job.ID))
}

func TestTaskLogic_KillDeadNode(t *testing.T) {
	db, _, tasks, _ := newLogics(t)
	ctx := context.Background()

	_, rows := seedJob(t, db, model.StatusStarted, model.StatusStarted)
	require.NoError(t, db.Model(&rows[0]).Update("host", "node-01").Error)

	node := &model.RenderNode{Host: "node-01", Status: model.StatusStarted, TaskID: &rows[0].ID, IsRenderNode: true}
	require.NoError(t, db.Create(node).Error)

	// The node has no IP address, so the kill cannot go over the wire and
	// the rows are forced from here.
	require.NoError(t, tasks.Kill(ctx, rows[0].ID))

	var task model.RenderTask
	require.NoError(t, db.First(&task, rows[0].ID).Error)
	assert.Equal(t, model.StatusKilled, task.Status)
	require.NotNil(t, task.ExitCode)
	assert.Equal(t, model.ExitCodeKilled, *task.ExitCode)

	var gotNode model.RenderNode
	require.NoError(t, db.First(&gotNode, node.ID).Error)
	assert.Equal(t, model.StatusOffline, gotNode.Status)
	assert.Nil(t, gotNode.TaskID)
}

func TestTaskLogic_Reset(t *testing.T) {
	db, _, tasks, _ := newLogics(t)
	ctx := context.Background()

	_, rows := seedJob(t, db, model.StatusError, model.StatusError, model.StatusStarted)
	code := 1
	require.NoError(t, db.Model(&rows[0]).Updates(map[string]interface{}{
		"host":      "node-01",
		"exit_code": code,
	}).Error)

	require.NoError(t, tasks.Reset(ctx, rows[0].ID))
	var got model.RenderTask
	require.NoError(t, db.First(&got, rows[0].ID).Error)
	assert.Equal(t, model.StatusPaused, got.Status)
	assert.Empty(t, got.Host)
	assert.Nil(t, got.ExitCode)

	assert.Error(t, tasks.Reset(ctx, rows[1].ID), "running tasks must be killed first")
}

func TestTaskLogic_KillFinishedIsNoop(t *testing.T) {
	db, _, tasks, _ := newLogics(t)
	ctx := context.Background()

	_, rows := seedJob(t, db, model.StatusFinished, model.StatusFinished)
	require.NoError(t, tasks.Kill(ctx, rows[0].ID))
	assert.Equal(t, model.StatusFinished, taskStatus(t, db, rows[0].ID))
}

func TestNodeLogic_RegisterIdempotent(t *testing.T) {
	db, _, _, nodes := newLogics(t)
	ctx := context.Background()

	first, err := nodes.Register(ctx, "node-01", "linux", "10.0.0.5", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOffline, first.Status)

	again, err := nodes.Register(ctx, "node-01", "linux", "10.0.0.5", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&model.RenderNode{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNodeLogic_OnlineOffline(t *testing.T) {
	db, _, _, nodes := newLogics(t)
	ctx := context.Background()

	node, err := nodes.Register(ctx, "node-01", "linux", "", "1.0.0")
	require.NoError(t, err)

	require.NoError(t, nodes.Online(ctx, node.ID))
	var got model.RenderNode
	require.NoError(t, db.First(&got, node.ID).Error)
	assert.Equal(t, model.StatusIdle, got.Status)

	require.NoError(t, nodes.Offline(ctx, node.ID))
	require.NoError(t, db.First(&got, node.ID).Error)
	assert.Equal(t, model.StatusOffline, got.Status)
}

func TestNodeLogic_OfflineWhileWorkingGoesPending(t *testing.T) {
	db, _, _, nodes := newLogics(t)
	ctx := context.Background()

	node := &model.RenderNode{Host: "node-01", Status: model.StatusStarted, IsRenderNode: true}
	require.NoError(t, db.Create(node).Error)

	require.NoError(t, nodes.Offline(ctx, node.ID))

	var got model.RenderNode
	require.NoError(t, db.First(&got, node.ID).Error)
	assert.Equal(t, model.StatusPending, got.Status, "current task finishes before the node goes offline")

	// Coming back online resumes work directly.
	require.NoError(t, nodes.Online(ctx, node.ID))
	require.NoError(t, db.First(&got, node.ID).Error)
	assert.Equal(t, model.StatusStarted, got.Status)
}

func TestNodeLogic_Update(t *testing.T) {
	db, _, _, nodes := newLogics(t)
	ctx := context.Background()

	node, err := nodes.Register(ctx, "node-01", "linux", "", "1.0.0")
	require.NoError(t, err)

	minPriority := 60
	caps := "Maya  Redshift"
	require.NoError(t, nodes.Update(ctx, node.ID, NodeEdit{
		MinPriority:  &minPriority,
		Capabilities: &caps,
	}))

	var got model.RenderNode
	require.NoError(t, db.First(&got, node.ID).Error)
	assert.Equal(t, 60, got.MinPriority)
	assert.Equal(t, "Maya Redshift", got.Capabilities, "token column is normalized")
}

func TestNodeLogic_CapabilityCatalog(t *testing.T) {
	_, _, _, nodes := newLogics(t)
	ctx := context.Background()

	a, err := nodes.Register(ctx, "node-a", "linux", "", "1.0.0")
	require.NoError(t, err)
	b, err := nodes.Register(ctx, "node-b", "linux", "", "1.0.0")
	require.NoError(t, err)

	capsA := "Maya Redshift"
	require.NoError(t, nodes.Update(ctx, a.ID, NodeEdit{Capabilities: &capsA}))
	capsB := "Maya Nuke"
	require.NoError(t, nodes.Update(ctx, b.ID, NodeEdit{Capabilities: &capsB}))

	catalog, err := nodes.Capabilities(ctx)
	require.NoError(t, err)

	names := make([]string, len(catalog))
	for i, c := range catalog {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Maya", "Nuke", "Redshift"}, names, "deduplicated and sorted")
}

func TestSummarize(t *testing.T) {
	db, _, _, _ := newLogics(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.RenderJob{Name: "a", Status: model.StatusReady}).Error)
	require.NoError(t, db.Create(&model.RenderJob{Name: "b", Status: model.StatusReady}).Error)
	require.NoError(t, db.Create(&model.RenderJob{Name: "c", Status: model.StatusFinished}).Error)
	require.NoError(t, db.Create(&model.RenderNode{Host: "n1", Status: model.StatusIdle, IsRenderNode: true}).Error)

	summary, err := Summarize(ctx, db)
	require.NoError(t, err)

	counts := map[model.Status]int64{}
	for _, c := range summary.Jobs {
		counts[c.Status] = c.Count
	}
	assert.EqualValues(t, 2, counts[model.StatusReady])
	assert.EqualValues(t, 1, counts[model.StatusFinished])
	require.Len(t, summary.Nodes, 1)
}
