package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-signlens/internal/httpc"
)

const providerGemini = "gemini"

// Gemini defaults.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-2.0-flash"
)

// Gemini calls the Gemini generateContent REST endpoint.
type Gemini struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini backend. An API key is required.
func NewGemini(opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = DefaultGeminiBaseURL
	cfg.Model = DefaultGeminiModel
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	return &Gemini{
		config: cfg,
		http:   hc,
		logger: loggerFor(cfg, "interpret.gemini"),
	}, nil
}

// Interpret sends the prompt and all frames as one generateContent call.
func (g *Gemini) Interpret(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	parts := make([]map[string]interface{}, 0, len(req.Frames)+1)
	parts = append(parts, map[string]interface{}{"text": req.Prompt})
	for _, f := range req.Frames {
		parts = append(parts, map[string]interface{}{
			"inlineData": map[string]string{
				"mimeType": f.MimeType,
				"data":     f.Data,
			},
		})
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"temperature":     g.config.Temperature,
			"maxOutputTokens": g.config.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.config.BaseURL, g.config.Model, g.config.APIKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	g.logger.Debug("sending batch", "frames", len(req.Frames), "bytes", len(body), "model", g.config.Model)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, g.parseError(resp)
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("decode response: %w", err))
	}

	if result.Error.Message != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    result.Error.Message,
			Code:       result.Error.Status,
			Provider:   providerGemini,
		}
	}

	if result.PromptFeedback.BlockReason != "" {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "the request was blocked by the service (" + result.PromptFeedback.BlockReason + ")",
			Code:       result.PromptFeedback.BlockReason,
			Provider:   providerGemini,
		}
	}

	text := result.text()
	if text == "" {
		return nil, WrapError(providerGemini, ErrNoContent)
	}

	return &Response{
		Text:      text,
		Model:     g.config.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

// Close releases idle connections.
func (g *Gemini) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

// parseError reads the service error envelope. A body that is not an
// envelope (proxy pages, truncated JSON) is a malformed response, not a
// service-reported error.
func (g *Gemini) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	if json.Unmarshal(body, &errResp) != nil || errResp.Error.Message == "" {
		g.logger.Warn("unstructured error response", "status", resp.StatusCode)
		return WrapError(providerGemini, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200)))
	}

	g.logger.Warn("service error", "status", resp.StatusCode, "code", errResp.Error.Status)

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errResp.Error.Message,
		Code:       errResp.Error.Status,
		Provider:   providerGemini,
	}
}

// geminiResponse is the Gemini API response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Status  string `json:"status"`
	} `json:"error"`
}

// text joins the parts of the first candidate.
func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// truncate shortens a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Verify Gemini implements Interpreter at compile time.
var _ Interpreter = (*Gemini)(nil)
