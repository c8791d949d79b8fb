package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// AnthropicAnalyzer analyzes frames with the Anthropic Messages API.
type AnthropicAnalyzer struct {
	baseURL     string
	apiKey      string
	visionModel string
	textModel   string
	httpClient  *http.Client
}

// NewAnthropicAnalyzer creates a new Anthropic analyzer.
func NewAnthropicAnalyzer(cfg config.ProviderConfig, timeout time.Duration) (*AnthropicAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	textModel := cfg.TextModel
	if textModel == "" {
		textModel = cfg.VisionModel
	}
	return &AnthropicAnalyzer{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		visionModel: cfg.VisionModel,
		textModel:   textModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

type anthropicErrorResponse struct {
	Type  string `json:"type"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Name returns the provider name.
func (a *AnthropicAnalyzer) Name() string { return "anthropic" }

// Analyze sends the frame as a base64 image block alongside the screen-activity prompt.
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, frame domain.RawFrame) (json.RawMessage, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	text, err := a.createMessage(ctx, &anthropicRequest{
		Model:     a.visionModel,
		MaxTokens: anthropicMaxTokens,
		System:    ScreenActivityPrompt.System,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{
					Type: "image",
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: frameMIME(frame),
						Data:      base64.StdEncoding.EncodeToString(frame.Data),
					},
				},
				{Type: "text", Text: BuildAnalyzePrompt(frame)},
			},
		}},
	})
	if err != nil {
		return nil, err
	}
	return parseObject(text)
}

// Summarize asks the text model for a session summary.
func (a *AnthropicAnalyzer) Summarize(ctx context.Context, payloads []json.RawMessage) (string, error) {
	text, err := a.createMessage(ctx, &anthropicRequest{
		Model:     a.textModel,
		MaxTokens: anthropicMaxTokens,
		System:    SessionSummaryPrompt.System,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicContent{{Type: "text", Text: BuildSummaryPrompt(payloads)}},
		}},
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty summary", domain.ErrMalformed)
	}
	return text, nil
}

func (a *AnthropicAnalyzer) createMessage(ctx context.Context, req *anthropicRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport("anthropic", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp anthropicErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			return "", classifyStatus("anthropic", resp.StatusCode, errResp.Error.Message)
		}
		return "", classifyStatus("anthropic", resp.StatusCode, string(respBody))
	}

	var result anthropicResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal response: %v", domain.ErrMalformed, err)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
