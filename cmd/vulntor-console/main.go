package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vulntor/console/cmd/vulntor-console/commands"
)

// Exit codes:
//   - 0: success
//   - 1: general error
//   - 2: invalid usage or input
//   - 4: not found
//   - 5: timed out
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.NewCommand().ExecuteContext(ctx)
	if err != nil {
		if !commands.IsReported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(commands.ExitCode(err))
	}
}
