package main

import (
	"os"

	"github.com/david2777/hydra-render-farm/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
