package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/rybkr/rewind/internal/gitcore"
	"github.com/rybkr/rewind/internal/logging"
)

const (
	exitFailure    = 1
	exitRepository = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		fmt.Fprintln(os.Stderr, "rewind:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var vcErr *gitcore.VersionControlError
	if errors.As(err, &vcErr) {
		return exitRepository
	}
	return exitFailure
}
