// knxtool - KNX network link and device management connection tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"knxtool/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "knxtool: %v\n", err)
		os.Exit(1)
	}
}
