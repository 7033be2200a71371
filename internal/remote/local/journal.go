package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/core"
)

// commandRunner runs a program and returns its standard output. It is
// replaced in tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Logs reads the unit's most recent lines from the user journal.
func (s *Systemd) Logs(ctx context.Context, lines int) ([]string, error) {
	lines = core.ClampLogLines(lines)
	out, err := s.run(ctx, "journalctl",
		"--user",
		"--unit", s.unit,
		"--lines", strconv.Itoa(lines),
		"--no-pager",
		"--quiet",
	)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		s.log.Warn("reading journal failed", zap.Error(err))
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return splitLines(out, lines), nil
}

// splitLines splits journal output into at most limit lines, keeping the
// newest.
func splitLines(out []byte, limit int) []string {
	out = bytes.TrimRight(out, "\n")
	if len(out) == 0 {
		return []string{}
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}
