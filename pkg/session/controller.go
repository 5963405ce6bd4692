package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-signlens/internal/observe"
	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/frame"
	"github.com/teslashibe/go-signlens/pkg/interpret"
	"github.com/teslashibe/go-signlens/pkg/sampler"
)

// DefaultSubmitTimeout bounds one interpretation call.
const DefaultSubmitTimeout = 60 * time.Second

// Camera is the live frame source the controller records from.
type Camera interface {
	Open(ctx context.Context) error
	Live() bool
	Latest() (image.Image, error)
	Close() error
}

// Config holds controller settings.
type Config struct {
	// Prompt is sent ahead of every batch.
	Prompt string

	// SubmitTimeout bounds one interpretation call.
	SubmitTimeout time.Duration

	Sampler sampler.Config
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Prompt:        interpret.DefaultPrompt,
		SubmitTimeout: DefaultSubmitTimeout,
		Sampler:       sampler.DefaultConfig(),
	}
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics *observe.Metrics
	encoder sampler.Encoder
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEncoder replaces the sampler's frame encoder.
func WithEncoder(enc sampler.Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

// Controller is the single capture session of the process. All state
// changes are serialised by mu; the change sink runs outside it.
type Controller struct {
	cam     Camera
	sampler *sampler.Sampler
	interp  interpret.Interpreter
	cfg     Config
	metrics *observe.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	state State

	pubMu sync.Mutex
	sink  func(State)

	submissions sync.WaitGroup
}

// New creates a controller. The interpreter is owned by the controller
// from here on and closed by Close.
func New(cam Camera, interp interpret.Interpreter, cfg Config, opts ...Option) *Controller {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = observe.Nop()
	}
	if cfg.Prompt == "" {
		cfg.Prompt = interpret.DefaultPrompt
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = DefaultSubmitTimeout
	}

	logger := o.logger.With("component", "session")
	sopts := []sampler.Option{
		sampler.WithMetrics(o.metrics),
		sampler.WithLogger(o.logger),
	}
	if o.encoder != nil {
		sopts = append(sopts, sampler.WithEncoder(o.encoder))
	}

	return &Controller{
		cam:     cam,
		sampler: sampler.New(cam, cfg.Sampler, sopts...),
		interp:  interp,
		cfg:     cfg,
		metrics: o.metrics,
		logger:  logger,
		state:   Idle(),
	}
}

// OnChange registers the function that receives every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.pubMu.Lock()
	c.sink = fn
	c.pubMu.Unlock()
}

// State returns a snapshot. While recording, Frames is the live count.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Phase == PhaseRecording {
		s.Frames = c.sampler.Count()
	}
	return s
}

// CameraLive reports whether the camera is delivering frames.
func (c *Controller) CameraLive() bool {
	return c.cam.Live()
}

// Open acquires the camera. A failure puts the session into a device
// access error unless a recording or submission is under way.
func (c *Controller) Open(ctx context.Context) error {
	err := c.cam.Open(ctx)

	c.mu.Lock()
	changed := false
	switch {
	case err != nil && !c.state.Busy():
		c.state = Failed(KindDeviceAccess, deviceMessage(err))
		changed = true
	case err == nil && c.state.Phase == PhaseError && c.state.Kind == KindDeviceAccess:
		c.state = Idle()
		changed = true
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("camera unavailable", "error", err)
	}
	if changed {
		c.publish()
	}
	return err
}

// Start begins a recording. Any previous error or result is cleared.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state.Phase {
	case PhaseRecording:
		c.mu.Unlock()
		return ErrAlreadyRecording
	case PhaseProcessing:
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.cam.Live() {
		c.mu.Unlock()
		return fmt.Errorf("start: %w", ErrDeviceAccess)
	}

	id := uuid.NewString()
	if err := c.sampler.Start(ctx); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start: %w", err)
	}
	c.state = Recording(id, 0)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "recording started", "session", id)
	c.publish()
	return nil
}

// Stop ends the recording. An empty batch fails immediately with
// ErrEmptyBatch; otherwise the batch is submitted in the background
// and Stop returns without waiting for the result.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Phase != PhaseRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	id := c.state.SessionID

	batch, err := c.sampler.Stop()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("stop: %w", err)
	}

	if len(batch) == 0 {
		_, msg := interpret.Classify(ErrEmptyBatch)
		c.state = Failed(interpret.KindEmptyBatch, msg)
		c.state.SessionID = id
		c.mu.Unlock()

		c.metrics.Submissions.Add(ctx, 1, observe.Outcome(observe.OutcomeEmpty))
		c.logger.WarnContext(ctx, "recording stopped with no frames", "session", id)
		c.publish()
		return ErrEmptyBatch
	}

	c.state = Processing(id, len(batch))
	c.submissions.Add(1)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "recording stopped", "session", id, "frames", len(batch))
	c.publish()

	go c.submit(id, batch)
	return nil
}

// Toggle starts a recording unless one is running, in which case it
// stops it.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	recording := c.state.Phase == PhaseRecording
	c.mu.Unlock()

	if recording {
		return c.Stop(ctx)
	}
	return c.Start(ctx)
}

// Wait blocks until no submission is in flight.
func (c *Controller) Wait() {
	c.submissions.Wait()
}

// Close abandons any recording, waits for the pending submission and
// releases the camera and the interpreter.
func (c *Controller) Close() error {
	c.mu.Lock()
	abandoned := c.state.Phase == PhaseRecording
	var stopErr error
	if abandoned {
		_, stopErr = c.sampler.Stop()
		c.state = Idle()
	}
	c.mu.Unlock()

	if abandoned {
		if stopErr != nil {
			c.logger.Warn("stopping sampler on close failed", "error", stopErr)
		}
		c.logger.Info("recording abandoned on close")
		c.publish()
	}
	c.submissions.Wait()
	return errors.Join(c.cam.Close(), c.interp.Close())
}

// submit runs the one interpretation call for a batch. The deferred
// handler always moves the session out of processing.
func (c *Controller) submit(id string, batch []frame.Frame) {
	defer c.submissions.Done()

	start := time.Now()
	next := Failed(interpret.KindUnexpected, interpret.UnexpectedPrefix)
	outcome := observe.OutcomeUnexpected

	defer func() {
		if r := recover(); r != nil {
			_, msg := interpret.Classify(fmt.Errorf("panic: %v", r))
			next = Failed(interpret.KindUnexpected, msg)
			outcome = observe.OutcomeUnexpected
			c.logger.Error("interpretation panicked", "session", id, "panic", r)
		}
		next.SessionID = id
		if next.Phase == PhaseError {
			next.Frames = len(batch)
		}

		ctx := context.Background()
		c.metrics.Submissions.Add(ctx, 1, observe.Outcome(outcome))
		c.metrics.SubmitDuration.Record(ctx, time.Since(start).Seconds())
		c.finish(id, next)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.SubmitTimeout)
	defer cancel()

	c.metrics.BatchSize.Record(ctx, int64(len(batch)))

	resp, err := c.interp.Interpret(ctx, &interpret.Request{
		Prompt: c.cfg.Prompt,
		Frames: batch,
	})
	if err != nil {
		kind, msg := interpret.Classify(err)
		next = Failed(kind, msg)
		if kind == interpret.KindService {
			outcome = observe.OutcomeService
		}
		c.logger.Error("interpretation failed", "session", id, "kind", kind, "error", err)
		return
	}

	next = Done(id, resp.Text)
	next.Frames = len(batch)
	outcome = observe.OutcomeOK
	c.logger.Info("interpretation complete", "session", id, "model", resp.Model, "latency_ms", resp.LatencyMs)
}

func (c *Controller) finish(id string, next State) {
	c.mu.Lock()
	if c.state.Phase != PhaseProcessing || c.state.SessionID != id {
		c.mu.Unlock()
		c.logger.Warn("discarding stale result", "session", id)
		return
	}
	c.state = next
	c.mu.Unlock()
	c.publish()
}

// publish sends the current state to the sink. Re-reading under pubMu
// keeps the last delivered state equal to the current one.
func (c *Controller) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if c.sink == nil {
		return
	}
	c.sink(c.State())
}

func deviceMessage(err error) string {
	var de *camera.DeviceError
	if errors.As(err, &de) {
		return de.Message()
	}
	return err.Error()
}
