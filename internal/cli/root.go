// Package cli defines the hydra command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/config"
	"github.com/david2777/hydra-render-farm/internal/logger"
	"github.com/david2777/hydra-render-farm/internal/store"
)

var configPath string

// NewRootCmd builds the hydra command with all of its subcommands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hydra",
		Short: "A render farm coordinated through a shared database",
		Long: `Hydra schedules render jobs across a farm of nodes. All coordination
happens through the shared database: the farm server hosts the management
API and housekeeping, render nodes poll the database and claim tasks.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yml", "path to the config file")

	root.AddCommand(newFarmCmd())
	root.AddCommand(newNodeCmd())
	root.AddCommand(newSubmitCmd())
	root.AddCommand(newRegisterCmd())
	return root
}

// bootstrap loads config, builds the logger and opens the store. Every
// subcommand starts here.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(&cfg.Log)

	db, err := store.Open(&cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	return cfg, log, db, nil
}
