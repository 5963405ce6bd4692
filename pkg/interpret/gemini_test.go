package interpret

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-signlens/pkg/frame"
)

func testFrames(n int) []frame.Frame {
	frames := make([]frame.Frame, n)
	for i := range frames {
		frames[i] = frame.Frame{
			Seq:        uint64(i + 1),
			CapturedAt: time.Unix(int64(i), 0),
			MimeType:   frame.MimePNG,
			Data:       strings.Repeat(string(rune('A'+i)), 4),
		}
	}
	return frames
}

type geminiPart struct {
	Text       string `json:"text"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
}

func TestGeminiInterpret(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing API key")
		}

		var body struct {
			Contents []struct {
				Parts []geminiPart `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(body.Contents) != 1 {
			t.Fatalf("expected 1 content, got %d", len(body.Contents))
		}
		parts := body.Contents[0].Parts
		if len(parts) != 4 {
			t.Fatalf("expected prompt + 3 images, got %d parts", len(parts))
		}
		if parts[0].Text != "describe" {
			t.Errorf("first part should be the prompt, got %+v", parts[0])
		}
		for i, want := range []string{"AAAA", "BBBB", "CCCC"} {
			p := parts[i+1]
			if p.InlineData == nil || p.InlineData.Data != want || p.InlineData.MimeType != "image/png" {
				t.Errorf("part %d = %+v, want image %s", i+1, p, want)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"HEL"},{"text":"LO"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	g, err := NewGemini(
		WithBaseURL(server.URL+"/"),
		WithAPIKey("test-key"),
		WithModel("gemini-test"),
	)
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	defer g.Close()

	resp, err := g.Interpret(context.Background(), &Request{Prompt: "describe", Frames: testFrames(3)})
	if err != nil {
		t.Fatalf("Interpret failed: %v", err)
	}
	if resp.Text != "HELLO" {
		t.Errorf("Text = %q, want HELLO", resp.Text)
	}
	if resp.Model != "gemini-test" {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestGeminiServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("bad"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p", Frames: testFrames(1)})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 400 || apiErr.Code != "INVALID_ARGUMENT" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}

	kind, msg := Classify(err)
	if kind != KindService || msg != "API key not valid. Please pass a valid API key." {
		t.Errorf("Classify = %s %q", kind, msg)
	}
}

func TestGeminiUnstructuredError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p", Frames: testFrames(1)})

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("unstructured body must not be an APIError: %v", err)
	}
	if kind, msg := Classify(err); kind != KindUnexpected || !strings.HasPrefix(msg, UnexpectedPrefix) {
		t.Errorf("Classify = %s %q", kind, msg)
	}
}

func TestGeminiMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":`))
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p", Frames: testFrames(1)})
	if kind, _ := Classify(err); kind != KindUnexpected {
		t.Errorf("malformed JSON classified as %s, err %v", kind, err)
	}
}

func TestGeminiNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p", Frames: testFrames(1)})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestGeminiBlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p", Frames: testFrames(1)})
	if kind, msg := Classify(err); kind != KindService || !strings.Contains(msg, "SAFETY") {
		t.Errorf("Classify = %s %q", kind, msg)
	}
}

func TestGeminiEmptyBatchMakesNoCall(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	g, _ := NewGemini(WithBaseURL(server.URL), WithAPIKey("k"))
	_, err := g.Interpret(context.Background(), &Request{Prompt: "p"})
	if !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("err = %v, want ErrEmptyBatch", err)
	}
	if called {
		t.Error("empty batch must not reach the network")
	}
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	if _, err := NewGemini(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}
