// Package app wires the camera, session controller and dashboard into
// one running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-signlens/internal/config"
	"github.com/teslashibe/go-signlens/internal/observe"
	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/interpret"
	"github.com/teslashibe/go-signlens/pkg/session"
	"github.com/teslashibe/go-signlens/pkg/web"
)

const shutdownTimeout = 5 * time.Second

// App is a configured signlens process.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	opener  camera.Opener
	metrics *observe.Metrics
	promh   http.Handler

	stopMetrics func(context.Context) error

	camera *camera.Manager
	ctrl   *session.Controller
	server *web.Server
}

// Option configures an App.
type Option func(*App)

// WithMetrics uses m instead of installing the Prometheus provider.
// No /metrics endpoint is mounted unless handler is non-nil.
func WithMetrics(m *observe.Metrics, handler http.Handler) Option {
	return func(a *App) {
		a.metrics = m
		a.promh = handler
	}
}

// New builds the interpreter, controller and dashboard from a loaded
// configuration. The camera is not opened until Run.
func New(cfg *config.Config, opener camera.Opener, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, opener: opener, logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	if a.metrics == nil {
		m, stop, err := observe.InitProvider()
		if err != nil {
			return nil, fmt.Errorf("init metrics: %w", err)
		}
		a.metrics, a.stopMetrics, a.promh = m, stop, promhttp.Handler()
	}

	interp, err := NewInterpreter(cfg, logger)
	if err != nil {
		return nil, err
	}

	a.camera = camera.NewManager(cfg.Camera, opener, logger)
	a.ctrl = session.New(a.camera, interp, session.Config{
		Prompt:        cfg.Prompt,
		SubmitTimeout: cfg.SubmitTimeout,
		Sampler:       cfg.Sampler,
	}, session.WithLogger(logger), session.WithMetrics(a.metrics))

	a.server = web.NewServer(a.ctrl, web.Config{
		Port:      cfg.Server.Port,
		StaticDir: cfg.Server.StaticDir,
		Metrics:   a.promh,
		Logger:    logger,
	})
	a.ctrl.OnChange(a.server.PublishState)
	a.camera.OnPreview(a.server.SendPreview)

	return a, nil
}

// NewInterpreter builds the backend selected by cfg.Provider.
func NewInterpreter(cfg *config.Config, logger *slog.Logger) (interpret.Interpreter, error) {
	opts := []interpret.Option{
		interpret.WithAPIKey(cfg.APIKey),
		interpret.WithTimeout(cfg.SubmitTimeout),
	}
	if logger != nil {
		opts = append(opts, interpret.WithLogger(logger))
	}
	if cfg.Model != "" {
		opts = append(opts, interpret.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, interpret.WithBaseURL(cfg.BaseURL))
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return interpret.NewGemini(opts...)
	case config.ProviderOpenAI:
		return interpret.NewOpenAI(opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// Controller returns the session controller.
func (a *App) Controller() *session.Controller {
	return a.ctrl
}

// Server returns the web server.
func (a *App) Server() *web.Server {
	return a.server
}

// Run opens the camera and serves the dashboard until ctx is cancelled.
// A camera failure is shown in the dashboard and can be retried there.
func (a *App) Run(ctx context.Context) error {
	if err := a.ctrl.Open(ctx); err != nil {
		a.logger.Warn("starting without camera", "error", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- a.server.Start(ctx) }()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
		return a.Shutdown()
	case err := <-errc:
		return errors.Join(fmt.Errorf("web server: %w", err), a.Shutdown())
	}
}

// Shutdown stops the server, waits for a pending interpretation and
// releases the camera.
func (a *App) Shutdown() error {
	errs := []error{a.server.Shutdown(), a.ctrl.Close()}
	if a.stopMetrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		errs = append(errs, a.stopMetrics(ctx))
	}
	return errors.Join(errs...)
}
