package capture

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// CommandSource captures by running an external command that writes an
// image to stdout, e.g. "grim -" or "import -window root png:-".
type CommandSource struct {
	name    string
	args    []string
	timeout time.Duration
}

// NewCommandSource creates a command source from a whitespace separated command line.
func NewCommandSource(command string, timeout time.Duration) *CommandSource {
	fields := strings.Fields(command)
	s := &CommandSource{timeout: timeout}
	if len(fields) > 0 {
		s.name = fields[0]
		s.args = fields[1:]
	}
	return s
}

// Capture runs the command and returns its stdout as the frame.
func (s *CommandSource) Capture(ctx context.Context, sessionID string) (domain.RawFrame, error) {
	if s.name == "" {
		return domain.RawFrame{}, fmt.Errorf("%w: empty capture command", domain.ErrCaptureUnavailable)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	capturedAt := time.Now().UTC()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return domain.RawFrame{}, fmt.Errorf("%w: %s: %s", domain.ErrCaptureUnavailable, s.name, msg)
	}
	if stdout.Len() == 0 {
		return domain.RawFrame{}, fmt.Errorf("%w: %s produced no output", domain.ErrCaptureUnavailable, s.name)
	}

	data := stdout.Bytes()
	return domain.RawFrame{
		Data:       data,
		MIMEType:   http.DetectContentType(data),
		CapturedAt: capturedAt,
	}, nil
}
