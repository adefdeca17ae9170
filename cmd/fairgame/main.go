// cmd/fairgame/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unapproachable/fairgame-fork/internal/cli"
)

func main() {
	// Cancel the hunt on Ctrl-C or SIGTERM so the browser and caches are closed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
