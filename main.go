package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/replicate/rget/cmd"
	"github.com/replicate/rget/pkg/logging"
)

func main() {
	logging.SetupLogger()
	rootCMD := cmd.GetRootCommand()

	// an interrupted download still closes its output
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCMD.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
