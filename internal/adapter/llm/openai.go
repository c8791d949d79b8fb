package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Pythonista7/context-tracker-backend/internal/config"
	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// OpenAIAnalyzer analyzes frames with an OpenAI vision model.
type OpenAIAnalyzer struct {
	client      openai.Client
	visionModel string
	textModel   string
}

// NewOpenAIAnalyzer creates an analyzer for the OpenAI chat completions API.
// Retries are disabled on the SDK client; the pipeline owns retry policy.
func NewOpenAIAnalyzer(cfg config.ProviderConfig, timeout time.Duration) (*OpenAIAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	textModel := cfg.TextModel
	if textModel == "" {
		textModel = cfg.VisionModel
	}
	return &OpenAIAnalyzer{
		client:      openai.NewClient(opts...),
		visionModel: cfg.VisionModel,
		textModel:   textModel,
	}, nil
}

// Name returns the provider name.
func (a *OpenAIAnalyzer) Name() string { return "openai" }

// Analyze sends the frame as a base64 data URL alongside the screen-activity prompt.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, frame domain.RawFrame) (json.RawMessage, error) {
	if err := checkFrame(frame); err != nil {
		return nil, err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", frameMIME(frame), base64.StdEncoding.EncodeToString(frame.Data))
	text, err := a.complete(ctx, a.visionModel, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(ScreenActivityPrompt.System),
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(BuildAnalyzePrompt(frame)),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    dataURL,
				Detail: "auto",
			}),
		}),
	})
	if err != nil {
		return nil, err
	}
	return parseObject(text)
}

// Summarize asks the text model for a session summary.
func (a *OpenAIAnalyzer) Summarize(ctx context.Context, payloads []json.RawMessage) (string, error) {
	text, err := a.complete(ctx, a.textModel, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(SessionSummaryPrompt.System),
		openai.UserMessage(BuildSummaryPrompt(payloads)),
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

func (a *OpenAIAnalyzer) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus("openai", apiErr.StatusCode, apiErr.Message)
		}
		return "", classifyTransport("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", domain.ErrMalformed)
	}
	return resp.Choices[0].Message.Content, nil
}
