package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/david2777/hydra-render-farm/internal/config"
	"github.com/david2777/hydra-render-farm/internal/dispatch"
	"github.com/david2777/hydra-render-farm/internal/router"
	"github.com/david2777/hydra-render-farm/internal/store"
)

func newFarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "farm",
		Short: "Run the farm server (management API and housekeeping)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFarm()
		},
	}
}

func runFarm() error {
	cfg, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go reapLoop(ctx, db, cfg, log)

	app := fiber.New(fiber.Config{
		AppName: cfg.App.Name,
	})
	router.Setup(app, db, cfg, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()
	log.Info("farm server started", zap.String("addr", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	log.Info("farm server stopped")
	return nil
}

// reapLoop periodically requeues tasks held by nodes that stopped
// heartbeating.
func reapLoop(ctx context.Context, db *gorm.DB, cfg *config.Config, log *zap.Logger) {
	ticker := time.NewTicker(cfg.Node.ReapDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := dispatch.ReapStaleNodes(ctx, db, cfg.Node.StaleDuration(), log)
		if err != nil && ctx.Err() == nil {
			log.Error("stale node reap failed", zap.Error(err))
			continue
		}
		if n > 0 {
			log.Info("reaped stale nodes", zap.Int("count", n))
		}
	}
}
