package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/csvstore/internal/cli"
	_ "github.com/JonMunkholm/csvstore/internal/store/layouts" // Register storage layouts
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := cli.RootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("csvstore failed", "error", err)
		os.Exit(1)
	}
}
