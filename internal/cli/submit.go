package cli

import (
	"context"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/david2777/hydra-render-farm/internal/store"
	"github.com/david2777/hydra-render-farm/internal/submit"
)

func newSubmitCmd() *cobra.Command {
	var req submit.Request
	var requirements []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a job to the farm",
		Example: `  hydra submit --name beauty --mode "Maya Render" --scene /proj/shot01.mb \
      --start 1 --end 240 --layers beauty --project /proj
  hydra submit --name cleanup --mode Command --script "rm -rf /tmp/renders"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Requirements = requirements
			return runSubmit(&req)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.Name, "name", "", "job name (required)")
	flags.StringVar(&req.Owner, "owner", "", "job owner, defaults to the current user")
	flags.StringVar(&req.Mode, "mode", "Maya Render", `job mode: "Maya Render", "MayaPy" or "Command"`)
	flags.StringSliceVar(&requirements, "require", nil, "capability the rendering node must have, repeatable")
	flags.IntVar(&req.Priority, "priority", 50, "job priority, higher runs first")
	flags.IntVar(&req.MaxNodes, "max-nodes", 0, "cap on concurrent nodes, 0 = unlimited")
	flags.IntVar(&req.Timeout, "timeout", 0, "per-task timeout in seconds, 0 = unlimited")
	flags.IntVar(&req.MaxAttempts, "max-attempts", 10, "failures before the job errors out")
	flags.BoolVar(&req.StartPaused, "paused", false, "submit the job paused")

	flags.StringVar(&req.TaskFile, "scene", "", "scene file to render (Maya Render)")
	flags.IntVar(&req.StartFrame, "start", 1, "first frame (Maya Render)")
	flags.IntVar(&req.EndFrame, "end", 1, "last frame, always rendered (Maya Render)")
	flags.IntVar(&req.ByFrame, "by", 1, "frame step (Maya Render)")
	flags.StringVar(&req.RenderLayers, "layers", "", "render layers (Maya Render)")
	flags.StringVar(&req.Project, "project", "", "project directory (Maya Render)")
	flags.StringVar(&req.OutputDirectory, "output", "", "render output directory (Maya Render)")
	flags.StringVar(&req.Args, "args", "", "extra renderer arguments (Maya Render)")
	flags.StringVar(&req.Script, "script", "", "inline script (MayaPy and Command)")

	cmd.MarkFlagRequired("name")
	return cmd
}

func runSubmit(req *submit.Request) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close(db)

	if req.Owner == "" {
		if u, err := user.Current(); err == nil {
			req.Owner = u.Username
		}
	}

	job, err := submit.Submit(context.Background(), db, req)
	if err != nil {
		return err
	}

	fmt.Printf("submitted job %d (%s) with %d tasks\n", job.ID, job.Name, job.TaskTotal)
	return nil
}
