// Command coursemind indexes course documents and retrieves the passages
// that answer a student's question.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/coursemind/internal/adapters/driving/cli"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version string

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBuilder(build)

	if err := cli.Execute(ctx); err != nil {
		logger.Error("%v", err)
		stop()
		os.Exit(1)
	}
}
