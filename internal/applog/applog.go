package applog

import (
	"io"
	"log/slog"
	"os"
)

// Options configures process-wide logging, mirroring the
// level/destination split the teacher's main() performs inline.
type Options struct {
	// LogPath is the shared file all sibling agents (the whole team) log
	// to. Empty means stdout only.
	LogPath string
	Debug   bool
}

// Setup builds the default slog.Logger for the process and installs it
// with slog.SetDefault, returning it (and an optional closer for the
// underlying file) so main can flush on shutdown.
func Setup(opts Options) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var (
		writer io.Writer = os.Stdout
		closer io.Closer
	)

	if opts.LogPath != "" {
		w, err := NewSizeRotatingWriter(opts.LogPath, 0)
		if err == nil {
			writer = w
			closer = w
		}
	}

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closer
}
