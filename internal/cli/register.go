package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/david2777/hydra-render-farm/internal/logic"
	"github.com/david2777/hydra-render-farm/internal/model"
	"github.com/david2777/hydra-render-farm/internal/store"
)

// version is stamped at build time with -ldflags.
var version = "dev"

func newRegisterCmd() *cobra.Command {
	var capabilities []string
	var minPriority int

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this host as a render node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(capabilities, minPriority)
		},
	}

	cmd.Flags().StringSliceVar(&capabilities, "capability", nil, "capability this node offers, repeatable")
	cmd.Flags().IntVar(&minPriority, "min-priority", 0, "lowest job priority this node accepts")
	return cmd
}

func runRegister(capabilities []string, minPriority int) error {
	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer store.Close(db)

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("resolve hostname: %w", err)
	}

	ctx := context.Background()
	taskLogic := logic.NewTaskLogic(db, 0, log)
	nodeLogic := logic.NewNodeLogic(db, taskLogic, log)

	node, err := nodeLogic.Register(ctx, host, runtime.GOOS, localIP(), version)
	if err != nil {
		return err
	}

	caps := model.JoinTokens(capabilities)
	if caps != "" || minPriority != 0 {
		edit := logic.NodeEdit{MinPriority: &minPriority, Capabilities: &caps}
		if err := nodeLogic.Update(ctx, node.ID, edit); err != nil {
			return err
		}
	}

	fmt.Printf("registered node %d (%s)\n", node.ID, node.Host)
	return nil
}

// localIP reports the preferred outbound address. No packet is sent, the
// dial only resolves a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
