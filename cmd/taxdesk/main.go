// Command taxdesk is the command line client for submitting and tracking
// tax filing requests.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taxdesk/filing-client/internal/client/cli"
	"github.com/taxdesk/filing-client/internal/pkg/config"
	"github.com/taxdesk/filing-client/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taxdesk: %v\n", err)
		return 1
	}
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "taxdesk",
	})

	root := cli.NewRootCmd(func(ctx context.Context) (*cli.App, error) {
		return cli.Open(ctx, cfg, log)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.Message(err))
		return 1
	}
	return 0
}
