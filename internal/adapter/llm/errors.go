package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// classifyStatus maps a provider HTTP status to a domain error class.
// Unrecognized statuses are returned unwrapped and treated as transient.
func classifyStatus(provider string, status int, message string) error {
	var class error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		class = domain.ErrAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity ||
		status == http.StatusRequestEntityTooLarge:
		class = domain.ErrMalformed
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		class = domain.ErrTimeout
	case status == http.StatusTooManyRequests:
		class = domain.ErrRateLimited
	default:
		return fmt.Errorf("%s API error [%d]: %s", provider, status, message)
	}
	return fmt.Errorf("%w: %s API error [%d]: %s", class, provider, status, message)
}

// classifyTransport maps a failed request (no HTTP response) to a domain error.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s request: %v", domain.ErrTimeout, provider, err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

// parseObject extracts a JSON object from model output. Models sometimes wrap
// the object in a markdown fence despite instructions.
func parseObject(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty model output", domain.ErrMalformed)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("%w: model output is not a JSON object: %v", domain.ErrMalformed, err)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformed, err)
	}
	return json.RawMessage(buf.Bytes()), nil
}

func checkFrame(frame domain.RawFrame) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: empty frame", domain.ErrMalformed)
	}
	return nil
}

func frameMIME(frame domain.RawFrame) string {
	if frame.MIMEType != "" {
		return frame.MIMEType
	}
	return http.DetectContentType(frame.Data)
}
