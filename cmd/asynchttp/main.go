package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeffersonwarrior/asynchttp/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewCLI().Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "asynchttp: %v\n", err)
		stop()
		os.Exit(1)
	}
}
