package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gradcafe_scraper/cmd/gradcafe/commands"
)

func main() {
	// Interrupts cancel the run; the scraper persists what it has before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
