// Package node runs the render node agent: the poll/claim loop, the child
// process execution wrapper, the heartbeat, and the out-of-band command
// server. The agent holds no scheduling state of its own; everything it
// decides comes from its row in the shared store.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/config"
	"github.com/david2777/hydra-render-farm/internal/dispatch"
	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/wire"
)

// offlineStatuses are node states in which the poll loop does not claim.
var offlineStatuses = map[model.Status]bool{
	model.StatusOffline: true,
	model.StatusPending: true,
	model.StatusStarted: true,
}

// Agent is one render node process.
type Agent struct {
	db   *gorm.DB
	cfg  *config.Config
	log  *zap.Logger
	node *model.RenderNode

	wireServer *wire.Server

	mu         sync.Mutex
	cancelTask context.CancelFunc // cancels the running child, nil when idle
	killed     bool               // current task was killed on request

	stop context.CancelFunc // stops Run, set while running
}

// New loads this host's node row and builds the agent. The host must already
// be registered and marked render-eligible.
func New(db *gorm.DB, cfg *config.Config, log *zap.Logger) (*Agent, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("node: resolve hostname: %w", err)
	}

	var row model.RenderNode
	err = db.Where("host = ?", host).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("node: host %q is not registered, run `hydra register` first", host)
	}
	if err != nil {
		return nil, err
	}
	if !row.IsRenderNode {
		return nil, fmt.Errorf("node: host %q is not marked as a render node", host)
	}

	a := &Agent{
		db:   db,
		cfg:  cfg,
		log:  log.With(zap.String("host", host)),
		node: &row,
	}
	a.wireServer = wire.NewServer(a.handleWire, a.log)
	return a, nil
}

// Run starts the agent and blocks until ctx is cancelled or a shutdown
// request arrives over the wire. On the way out the node offlines itself.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.stop = cancel

	// A restart with a task still assigned means the previous process died
	// mid-render; hand the task back before doing anything else.
	if a.node.TaskID != nil || a.node.Status.Working() {
		a.log.Warn("found stuck task from a previous run", zap.Uintp("task", a.node.TaskID))
		if err := dispatch.ResetStuck(ctx, a.db, a.node); err != nil {
			return fmt.Errorf("node: reset stuck task: %w", err)
		}
	}

	if err := os.MkdirAll(a.cfg.Node.RenderLogDir, 0o755); err != nil {
		return fmt.Errorf("node: create render log dir: %w", err)
	}

	addr := fmt.Sprintf(":%d", a.cfg.Node.WirePort)
	if err := a.wireServer.Listen(addr); err != nil {
		return err
	}
	defer a.wireServer.Close()

	if a.cfg.Node.MetricsPort > 0 {
		go a.serveMetrics()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.heartbeatLoop(ctx)
	}()

	a.log.Info("render node agent started",
		zap.String("wire", a.wireServer.Addr()),
		zap.Duration("poll", a.cfg.Node.PollDuration()))

	a.pollLoop(ctx)
	wg.Wait()

	a.offline()
	a.log.Info("render node agent stopped")
	return nil
}

// pollLoop claims and executes tasks until ctx ends. A poll that finds no
// eligible task sleeps for the poll interval; execution itself is
// synchronous, a node runs at most one task.
func (a *Agent) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Node.PollDuration())
	defer ticker.Stop()

	for {
		a.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (a *Agent) pollOnce(ctx context.Context) {
	// Refresh our own row; management may have offlined or edited us.
	var row model.RenderNode
	if err := a.db.WithContext(ctx).Where("host = ?", a.node.Host).First(&row).Error; err != nil {
		if ctx.Err() == nil {
			a.log.Error("failed to refresh node row", zap.Error(err))
		}
		return
	}
	a.node = &row

	if offlineStatuses[a.node.Status] {
		return
	}

	task, err := dispatch.Claim(ctx, a.db, a.node)
	if errors.Is(err, dispatch.ErrNoTask) {
		return
	}
	if err != nil {
		if ctx.Err() == nil {
			a.log.Error("claim failed", zap.Error(err))
		}
		return
	}

	a.execute(ctx, task)
}

// heartbeatLoop writes the pulse at a fixed interval for the liveness
// monitor.
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Node.HeartbeatDuration())
	defer ticker.Stop()

	for {
		if err := dispatch.Heartbeat(ctx, a.db, a.node.ID); err != nil && ctx.Err() == nil {
			a.log.Error("heartbeat failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// handleWire serves out-of-band commands from the management console.
func (a *Agent) handleWire(req wire.Request) wire.Response {
	switch req.Cmd {
	case wire.CmdKillTask:
		if a.killCurrentTask() {
			return wire.OK(req, "task killed")
		}
		return wire.OK(req, "no task running")
	case wire.CmdShutdown:
		a.log.Info("shutdown requested over the wire")
		if a.stop != nil {
			a.stop()
		}
		return wire.OK(req, "shutting down")
	default:
		return wire.Fail(req, fmt.Sprintf("no handler for cmd %q", req.Cmd))
	}
}

// killCurrentTask cancels the running child process. The execute path sees
// the killed flag and routes the task through the retry coordinator; the
// wire response only acknowledges the interrupt.
func (a *Agent) killCurrentTask() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancelTask == nil {
		return false
	}
	a.killed = true
	a.cancelTask()
	return true
}

// offline sets this node's final status on shutdown: Idle-ish states come
// back as Offline so a dead agent never looks claimable.
func (a *Agent) offline() {
	status := model.StatusOffline
	err := a.db.Model(&model.RenderNode{}).
		Where("id = ?", a.node.ID).
		Update("status", status).Error
	if err != nil {
		a.log.Error("failed to offline node on shutdown", zap.Error(err))
	}
}

func (a *Agent) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", a.cfg.Node.MetricsPort)
	a.log.Info("metrics listener started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		a.log.Error("metrics listener failed", zap.Error(err))
	}
}
