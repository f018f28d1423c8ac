package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends one scoring event per line to a local JSONL file, the
// audit trail of record when no external collector is configured.
type FileSink struct {
	path string

	mu  sync.Mutex
	out *os.File
	buf *bufio.Writer
}

func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("telemetry file sink needs a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry dir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry file %s: %w", path, err)
	}
	return &FileSink{path: path, out: f, buf: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Name() string { return "file_jsonl:" + s.path }

// Deliver appends the event and flushes immediately, so a crash loses at
// most the event being written.
func (s *FileSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return fmt.Errorf("telemetry file %s already closed", s.path)
	}
	if err := json.NewEncoder(s.buf).Encode(ev); err != nil {
		return fmt.Errorf("append scoring event: %w", err)
	}
	return s.buf.Flush()
}

func (s *FileSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil
	}
	flushErr := s.buf.Flush()
	closeErr := s.out.Close()
	s.out = nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
