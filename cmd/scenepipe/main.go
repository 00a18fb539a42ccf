package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"scenepipe/internal/pipelineerr"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(pipelineerr.ExitCode(err))
	}
}
