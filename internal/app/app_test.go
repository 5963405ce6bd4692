package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-signlens/internal/config"
	"github.com/teslashibe/go-signlens/internal/observe"
	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/session"
)

func geminiServer(t *testing.T, frames *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		frames.Store(int32(strings.Count(string(body), `"inlineData"`)))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"HELLO"}]}}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL
	cfg.Sampler.Interval = 20 * time.Millisecond
	cfg.Camera.OpenTimeout = time.Second
	return cfg
}

func TestEndToEnd(t *testing.T) {
	var frames atomic.Int32
	server := geminiServer(t, &frames)

	a, err := New(testConfig(server.URL), camera.PatternOpener, nil, WithMetrics(observe.Nop(), nil))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Shutdown()

	ctx := context.Background()
	ctrl := a.Controller()
	if err := ctrl.Open(ctx); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	if err := ctrl.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	ctrl.Wait()

	resp, err := a.Server().App().Test(httptest.NewRequest(http.MethodGet, "/api/state", nil))
	if err != nil {
		t.Fatalf("state request failed: %v", err)
	}
	var st session.State
	json.NewDecoder(resp.Body).Decode(&st)

	if st.Phase != session.PhaseResult || st.Message != "HELLO" {
		t.Fatalf("state = %+v", st)
	}
	if n := int(frames.Load()); n < 1 || n != st.Frames {
		t.Errorf("service received %d frames, state reports %d", n, st.Frames)
	}
}

func TestCameraFailureShownInState(t *testing.T) {
	var frames atomic.Int32
	server := geminiServer(t, &frames)

	denied := func(camera.Config) (camera.Source, error) {
		return nil, io.ErrClosedPipe
	}
	a, err := New(testConfig(server.URL), denied, nil, WithMetrics(observe.Nop(), nil))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Shutdown()

	a.Controller().Open(context.Background())

	resp, _ := a.Server().App().Test(httptest.NewRequest(http.MethodPost, "/api/toggle", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("toggle status = %d, want 503", resp.StatusCode)
	}
	if st := a.Controller().State(); st.Kind != session.KindDeviceAccess {
		t.Errorf("state = %+v", st)
	}
}

func TestNewInterpreter(t *testing.T) {
	cfg := config.Default()
	cfg.APIKey = "k"

	for _, provider := range []string{config.ProviderGemini, config.ProviderOpenAI} {
		cfg.Provider = provider
		interp, err := NewInterpreter(cfg, nil)
		if err != nil {
			t.Errorf("%s: %v", provider, err)
			continue
		}
		interp.Close()
	}

	cfg.Provider = "nope"
	if _, err := NewInterpreter(cfg, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
