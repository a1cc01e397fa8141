package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthur-debert/modman/cmd/modman"
	"github.com/arthur-debert/modman/pkg/ui"
	"github.com/charmbracelet/lipgloss"
)

func main() {
	// An interrupted install rolls back instead of leaving a half-written game directory.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := modman.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		styles := ui.NewStyles(lipgloss.NewRenderer(os.Stderr))
		fmt.Fprintln(os.Stderr, styles.Error.Render(fmt.Sprintf("Error: %v", err)))
		stop()
		os.Exit(1)
	}
}
