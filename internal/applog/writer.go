// Package applog wires up process-wide structured logging.
//
// The shape is borrowed from the teacher's internal/logging.RotatingWriter:
// a mutex-guarded io.Writer that always tees to stdout and lazily owns a
// log file, with old segments cleaned up in the background. Where the
// teacher rotates by calendar day (an APM collector runs for months), this
// writer rotates by size: a zappy agent's lifetime is one game, and several
// sibling agents (the whole team) share one log path handed down at spawn
// time, so the file can grow fast. The segment that gets rotated out is
// compressed with zstd instead of deleted, the same "don't throw away the
// rotated-out data, shrink it" idea behind the teacher's db/compress pairing
// with its own RotatingWriter.
package applog

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

const defaultMaxSizeBytes = 2 << 20 // 2 MiB

// SizeRotatingWriter is an io.Writer that writes to stdout and to a log
// file, rotating the file once it exceeds maxSize and zstd-compressing the
// rotated-out segment.
type SizeRotatingWriter struct {
	mu      sync.Mutex
	path    string
	maxSize int64

	file    *os.File
	written int64
}

// NewSizeRotatingWriter opens (or creates) path for append and prepares to
// rotate it once it grows past maxSize bytes. maxSize <= 0 selects a
// default of 2 MiB.
func NewSizeRotatingWriter(path string, maxSize int64) (*SizeRotatingWriter, error) {
	if maxSize <= 0 {
		maxSize = defaultMaxSizeBytes
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	return &SizeRotatingWriter{
		path:    path,
		maxSize: maxSize,
		file:    f,
		written: info.Size(),
	}, nil
}

// Write implements io.Writer. It never fails the caller: a broken log file
// must not bring down the agent's strategy loop.
func (w *SizeRotatingWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return len(p), nil
	}

	if w.written+int64(len(p)) > w.maxSize {
		w.rotateLocked()
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	if err != nil {
		w.file.Close()
		w.file = nil
	}
	return len(p), nil
}

// rotateLocked closes the current file, zstd-compresses it to
// "<path>.1.zst" (replacing any earlier archive), and reopens path fresh.
// Must be called with mu held.
func (w *SizeRotatingWriter) rotateLocked() {
	if w.file == nil {
		return
	}
	w.file.Close()

	archivePath := w.path + ".1.zst"
	if err := compressFile(w.path, archivePath); err == nil {
		os.Remove(w.path)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		w.file = nil
		return
	}
	w.file = f
	w.written = 0
}

// Close closes the underlying file.
func (w *SizeRotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func compressFile(src, dst string) error {
	in, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(in); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
