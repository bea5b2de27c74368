package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/david2777/hydra-render-farm/internal/node"
	"github.com/david2777/hydra-render-farm/internal/store"
)

func newNodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node",
		Short: "Run the render node agent on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
}

func runNode() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close(db)

	agent, err := node.New(db, cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return agent.Run(ctx)
}
