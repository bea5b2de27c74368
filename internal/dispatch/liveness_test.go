package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/david2777/hydra-render-farm/internal/model"
)

func TestHeartbeat_WritesPulse(t *testing.T) {
	db := testDB(t)
	node := createNode(t, db, &model.RenderNode{Host: "node-01"})

	require.NoError(t, Heartbeat(context.Background(), db, node.ID))

	got := reloadNode(t, db, node.ID)
	require.NotNil(t, got.Pulse)
	assert.WithinDuration(t, time.Now(), *got.Pulse, 5*time.Second)
}

func TestReapStaleNodes_RequeuesHeldTask(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	job := createJob(t, db, &model.RenderJob{Name: "job", Status: model.StatusStarted, TaskTotal: 1})
	stale := createNode(t, db, &model.RenderNode{Host: "stale"})
	task := startedTask(t, db, job.ID, stale)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(stale).Update("pulse", old).Error)

	fresh := createNode(t, db, &model.RenderNode{Host: "fresh", Status: model.StatusIdle})
	require.NoError(t, Heartbeat(ctx, db, fresh.ID))

	reaped, err := ReapStaleNodes(ctx, db, 5*time.Minute, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)

	got := reloadTask(t, db, task.ID)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Empty(t, got.Host)

	n := reloadNode(t, db, stale.ID)
	assert.Equal(t, model.StatusOffline, n.Status)
	assert.Nil(t, n.TaskID)
	assert.True(t, reloadJob(t, db, job.ID).HasFailedNode("stale"))

	assert.Equal(t, model.StatusIdle, reloadNode(t, db, fresh.ID).Status)
}

func TestReapStaleNodes_NeverPulsedCountsAsStale(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	node := createNode(t, db, &model.RenderNode{Host: "silent", Status: model.StatusStarted})

	reaped, err := ReapStaleNodes(ctx, db, 5*time.Minute, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, model.StatusOffline, reloadNode(t, db, node.ID).Status)
}

func TestReapStaleNodes_IgnoresIdleAndOffline(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	idle := createNode(t, db, &model.RenderNode{Host: "idle", Status: model.StatusIdle})
	offline := createNode(t, db, &model.RenderNode{Host: "offline", Status: model.StatusOffline})

	reaped, err := ReapStaleNodes(ctx, db, 5*time.Minute, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, reaped)
	assert.Equal(t, model.StatusIdle, reloadNode(t, db, idle.ID).Status)
	assert.Equal(t, model.StatusOffline, reloadNode(t, db, offline.ID).Status)
}

func TestResetStuck_RecoversRestartedNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	job := createJob(t, db, &model.RenderJob{Name: "job", Status: model.StatusStarted, TaskTotal: 1})
	node := createNode(t, db, &model.RenderNode{Host: "node-01"})
	task := startedTask(t, db, job.ID, node)

	require.NoError(t, ResetStuck(ctx, db, node))

	got := reloadTask(t, db, task.ID)
	assert.Equal(t, model.StatusReady, got.Status)
	assert.Empty(t, got.Host)
	require.NotNil(t, got.ExitCode)
	assert.Equal(t, model.ExitCodeStuck, *got.ExitCode)

	assert.Equal(t, model.StatusIdle, node.Status)
	assert.Nil(t, node.TaskID)
}
