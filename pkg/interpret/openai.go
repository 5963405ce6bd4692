package interpret

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const providerOpenAI = "openai"

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI sends batches to any OpenAI-compatible chat completions API
// (OpenAI, Ollama, vLLM, ...), with frames as image_url data URLs.
type OpenAI struct {
	client oai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible backend. The SDK's automatic
// retries are disabled so each batch is sent once.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Model = DefaultOpenAIModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client: oai.NewClient(reqOpts...),
		config: cfg,
		logger: loggerFor(cfg, "interpret.openai"),
	}, nil
}

// Interpret sends one user message holding the prompt and every frame.
func (o *OpenAI) Interpret(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	parts := make([]oai.ChatCompletionContentPartUnionParam, 0, len(req.Frames)+1)
	parts = append(parts, oai.TextContentPart(req.Prompt))
	for _, f := range req.Frames {
		parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{
			URL: f.DataURL(),
		}))
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(o.config.Model),
		Messages: []oai.ChatCompletionMessageParamUnion{oai.UserMessage(parts)},
	}
	if o.config.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(o.config.MaxTokens))
	}
	if o.config.Temperature != 0 {
		params.Temperature = param.NewOpt(o.config.Temperature)
	}

	o.logger.Debug("sending batch", "frames", len(req.Frames), "model", o.config.Model)

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Code:       apiErr.Code,
				Provider:   providerOpenAI,
			}
		}
		return nil, WrapError(providerOpenAI, err)
	}

	if len(resp.Choices) == 0 {
		return nil, WrapError(providerOpenAI, ErrNoContent)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, WrapError(providerOpenAI, ErrNoContent)
	}

	model := resp.Model
	if model == "" {
		model = o.config.Model
	}

	return &Response{
		Text:      text,
		Model:     model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close is a no-op; the SDK client holds no dedicated resources.
func (o *OpenAI) Close() error {
	return nil
}

// Verify OpenAI implements Interpreter at compile time.
var _ Interpreter = (*OpenAI)(nil)
