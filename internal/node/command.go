package node

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/david2777/hydra-render-farm/internal/model"
)

// BuildCommand returns the argv used to launch the task, derived from the
// job's execution mode.
func BuildCommand(job *model.RenderJob, task *model.RenderTask) ([]string, error) {
	switch job.Mode {
	case model.ModeMayaRender:
		cmd := []string{"render"}
		cmd = append(cmd, strings.Fields(job.Args)...)
		cmd = append(cmd,
			"-s", strconv.Itoa(task.StartFrame),
			"-e", strconv.Itoa(task.EndFrame),
			"-rl", job.RenderLayers,
			"-proj", job.Project,
		)
		if job.OutputDirectory != "" {
			cmd = append(cmd, "-rd", filepath.Clean(job.OutputDirectory))
		}
		cmd = append(cmd, filepath.Clean(job.TaskFile))
		return cmd, nil

	case model.ModeMayaPy:
		return []string{"mayapy", "-c", job.Script}, nil

	case model.ModeCommand:
		cmd := strings.Fields(job.Script)
		if len(cmd) == 0 {
			return nil, fmt.Errorf("node: job %d has an empty command", job.ID)
		}
		return cmd, nil

	default:
		return nil, fmt.Errorf("node: unknown job mode %q", job.Mode)
	}
}

// RenderLogPath returns the per-task render log location.
func RenderLogPath(dir string, taskID uint) string {
	return filepath.Join(dir, fmt.Sprintf("%010d.log.txt", taskID))
}
