package node

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/david2777/hydra-render-farm/internal/dispatch"
	"github.com/david2777/hydra-render-farm/internal/model"
)

// execute runs one claimed task to completion and reports the outcome back
// to the store. It blocks for the lifetime of the child process.
func (a *Agent) execute(ctx context.Context, task *model.RenderTask) {
	var job model.RenderJob
	if err := a.db.WithContext(ctx).First(&job, task.JobID).Error; err != nil {
		a.log.Error("failed to load job for claimed task",
			zap.Uint("task", task.ID), zap.Error(err))
		a.report(task, model.ExitCodeNotStarted, dispatch.ReasonExecError)
		return
	}

	args, err := BuildCommand(&job, task)
	if err != nil {
		a.log.Error("cannot build command for task",
			zap.Uint("task", task.ID), zap.Error(err))
		a.report(task, model.ExitCodeNotStarted, dispatch.ReasonExecError)
		return
	}

	logPath := RenderLogPath(a.cfg.Node.RenderLogDir, task.ID)
	logFile, err := os.Create(logPath)
	if err != nil {
		a.log.Error("cannot create render log", zap.String("path", logPath), zap.Error(err))
		a.report(task, model.ExitCodeNotStarted, dispatch.ReasonExecError)
		return
	}
	defer logFile.Close()

	taskCtx := ctx
	var timeoutCancel context.CancelFunc
	if job.Timeout > 0 {
		taskCtx, timeoutCancel = context.WithTimeout(ctx, time.Duration(job.Timeout)*time.Second)
		defer timeoutCancel()
	}
	taskCtx, cancel := context.WithCancel(taskCtx)
	defer cancel()

	a.mu.Lock()
	a.cancelTask = cancel
	a.killed = false
	a.mu.Unlock()

	a.log.Info("starting task",
		zap.Uint("task", task.ID),
		zap.Uint("job", task.JobID),
		zap.Strings("cmd", args))

	cmd := exec.CommandContext(taskCtx, args[0], args[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	runErr := cmd.Run()

	a.mu.Lock()
	killed := a.killed
	a.cancelTask = nil
	a.killed = false
	a.mu.Unlock()

	switch {
	case runErr == nil:
		a.log.Info("task finished", zap.Uint("task", task.ID))
		if err := dispatch.Complete(context.Background(), a.db, task.ID, a.node.Host, 0); err != nil {
			a.log.Error("failed to record completion", zap.Uint("task", task.ID), zap.Error(err))
		}
		if !a.cfg.Node.KeepAllRenderLogs {
			logFile.Close()
			os.Remove(logPath)
		}

	case killed:
		a.log.Info("task killed on request", zap.Uint("task", task.ID))
		a.report(task, model.ExitCodeKilled, dispatch.ReasonKilled)

	case errors.Is(taskCtx.Err(), context.DeadlineExceeded):
		a.log.Warn("task hit its timeout",
			zap.Uint("task", task.ID), zap.Int("timeout_s", job.Timeout))
		a.report(task, model.ExitCodeKilled, dispatch.ReasonTimeout)

	default:
		code := exitCode(runErr)
		a.log.Warn("task failed",
			zap.Uint("task", task.ID), zap.Int("exit_code", code), zap.Error(runErr))
		a.report(task, code, dispatch.ReasonExecError)
	}
}

// report routes a non-success outcome through the retry coordinator. It uses
// a background context so a shutdown in flight cannot strand the task in
// Started.
func (a *Agent) report(task *model.RenderTask, exitCode int, reason dispatch.FailureReason) {
	err := dispatch.HandleFailure(context.Background(), a.db, task.ID, a.node.Host, exitCode, reason)
	if err != nil {
		a.log.Error("failed to record task failure",
			zap.Uint("task", task.ID), zap.Error(err))
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return model.ExitCodeNotStarted
}
