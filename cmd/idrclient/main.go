// Command idrclient runs the configured ETL protocols once and exits,
// reporting the outcome via the exit codes documented in internal/cli.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/savannahghi/idrclient/internal/cli"

	// refprotocol composes the reference source/sink/processor/metadata
	// drivers into one protocol factory and self-registers it from its own
	// init(); amqpnotify self-registers an optional alerting listener the
	// same way. Both mirror the teacher's bootstrap packages registering
	// queue handlers by name.
	_ "github.com/savannahghi/idrclient/internal/drivers/amqpnotify"
	_ "github.com/savannahghi/idrclient/internal/drivers/refprotocol"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.New()
	os.Exit(app.Run(ctx, os.Args[1:]))
}
