// Command campus is the terminal client for the campus API. It can also
// serve an in-memory sandbox of the API for local use.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		stdinFd: int(os.Stdin.Fd()),
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", err)
		}
		stop()
		os.Exit(1)
	}
}
