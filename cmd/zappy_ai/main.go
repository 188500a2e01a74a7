// Command zappy_ai is the agent process boundary: CLI parsing, logging
// setup, signal wiring, and the exit-code contract (spec.md §6). Grounded
// on the teacher's cmd/scouter-server/main.go shape (config load, logger
// setup, a root context canceled by signals, run the server, map the
// result to an exit code).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/zappy/zappy-ai/internal/agent"
	"github.com/zappy/zappy-ai/internal/applog"
	"github.com/zappy/zappy-ai/internal/config"
	"github.com/zappy/zappy-ai/internal/ids"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], ids.New)
	if err != nil {
		var argErr *config.ArgError
		if errors.As(err, &argErr) {
			fmt.Fprintln(os.Stderr, argErr.Message)
			return argErr.Code
		}
		fmt.Fprintln(os.Stderr, err)
		return 84
	}

	_, closer := applog.Setup(applog.Options{
		LogPath: os.Getenv("ZAPPY_AI_LOG_PATH"),
		Debug:   os.Getenv("ZAPPY_AI_DEBUG") != "",
	})
	if closer != nil {
		defer closer.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGPIPE)
	defer cancel()

	slog.Info("starting agent", "team", cfg.TeamName, "host", cfg.Host, "port", cfg.Port, "unique_id", cfg.UniqueID)

	if err := agent.Run(ctx, cfg, os.Args[0]); err != nil {
		slog.Error("agent terminated with error", "error", err)
		return 1
	}

	slog.Info("agent exiting normally")
	return 0
}
