// Package web serves the signlens dashboard: a small JSON API for the
// record toggle, websocket feeds for state and camera preview, and the
// static page itself.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-signlens/pkg/hub"
	"github.com/teslashibe/go-signlens/pkg/session"
)

//go:embed static
var staticFiles embed.FS

// Controller is the session surface the dashboard drives.
type Controller interface {
	State() session.State
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Toggle(ctx context.Context) error
	Open(ctx context.Context) error
	CameraLive() bool
}

// Config holds server settings.
type Config struct {
	// Port to listen on.
	Port string

	// StaticDir overrides the embedded dashboard when set.
	StaticDir string

	// Metrics is mounted on /metrics when set.
	Metrics http.Handler

	Logger *slog.Logger
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   Controller
	logger *slog.Logger

	// Hubs for websocket broadcast
	stateHub   *hub.Hub
	previewHub *hub.Hub
}

// NewServer creates the dashboard server for ctrl.
func NewServer(ctrl Controller, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	s := &Server{
		cfg:        cfg,
		ctrl:       ctrl,
		logger:     cfg.Logger.With("component", "web"),
		stateHub:   hub.New("state", cfg.Logger),
		previewHub: hub.New("preview", cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "signlens",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/health", s.handleHealth)
	api.Post("/toggle", s.handleToggle)
	api.Post("/start", s.handleStart)
	api.Post("/stop", s.handleStop)
	api.Post("/camera", s.handleCamera)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	} else {
		sub, _ := fs.Sub(staticFiles, "static")
		app.Use("/", filesystem.New(filesystem.Config{Root: http.FS(sub)}))
	}

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start runs the hubs and serves until the listener fails or
// Shutdown is called. The hubs stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.stateHub.Run(ctx)
	go s.previewHub.Run(ctx)

	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// PublishState broadcasts a state change to every state client.
func (s *Server) PublishState(st session.State) {
	if err := s.stateHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("state broadcast failed", "error", err)
	}
}

// SendPreview broadcasts one JPEG preview frame.
func (s *Server) SendPreview(jpeg []byte) {
	if s.previewHub.ClientCount() == 0 {
		return
	}
	s.previewHub.BroadcastBinary(jpeg)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
