// Package sampler turns a live camera into an ordered batch of encoded
// frames: a ticker grabs the latest image at a fixed cadence, encodes it
// asynchronously and queues the result until Stop drains the batch.
//
// Stop policy: every tick that fired before Stop is part of the batch,
// because Stop waits for in-flight encodes before closing the queue.
// Nothing captured after Stop is ever appended. The returned batch is
// ordered by capture sequence, not by encode completion.
package sampler

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/teslashibe/go-signlens/internal/observe"
	"github.com/teslashibe/go-signlens/pkg/frame"
)

// Sentinel errors for sampler state.
var (
	ErrRecording    = errors.New("sampler: already recording")
	ErrNotRecording = errors.New("sampler: not recording")
)

// Grabber returns the current frame of a live source.
type Grabber interface {
	Latest() (image.Image, error)
}

// Encoder turns a grabbed image into a frame.
type Encoder interface {
	Encode(img image.Image, seq uint64, capturedAt time.Time) (frame.Frame, error)
}

// Config holds sampler settings.
type Config struct {
	// Interval is the capture period.
	Interval time.Duration `yaml:"interval"`

	// Raster size frames are scaled to before encoding.
	FrameWidth  int `yaml:"frame_width"`
	FrameHeight int `yaml:"frame_height"`

	// MaxInFlight bounds concurrent encodes.
	MaxInFlight int `yaml:"max_in_flight"`
}

// DefaultConfig returns a one-frame-per-second 640x480 sampler.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Second,
		FrameWidth:  frame.DefaultWidth,
		FrameHeight: frame.DefaultHeight,
		MaxInFlight: 4,
	}
}

// Sampler collects frames for one recording at a time.
type Sampler struct {
	src     Grabber
	enc     Encoder
	cfg     Config
	sem     *semaphore.Weighted
	metrics *observe.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	recording bool
	closed    bool
	seq       uint64
	frames    []frame.Frame
	stop      chan struct{}
	done      chan struct{}
	inflight  sync.WaitGroup
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithEncoder replaces the default PNG encoder.
func WithEncoder(enc Encoder) Option {
	return func(s *Sampler) { s.enc = enc }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Sampler) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l }
}

// New creates a sampler reading from src.
func New(src Grabber, cfg Config, opts ...Option) *Sampler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = def.MaxInFlight
	}

	s := &Sampler{
		src:    src,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.enc == nil {
		s.enc = frame.NewEncoder(cfg.FrameWidth, cfg.FrameHeight)
	}
	if s.metrics == nil {
		s.metrics = observe.Nop()
	}
	s.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	s.logger = s.logger.With("component", "sampler")
	return s
}

// Start clears the queue, captures one frame immediately and arms the
// ticker. The context only scopes logging; use Stop to end recording.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return ErrRecording
	}
	s.recording = true
	s.closed = false
	s.seq = 0
	s.frames = nil
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "recording started", "interval", s.cfg.Interval)

	s.capture()
	go s.loop(stop, done)
	return nil
}

// Stop disarms the ticker, waits for every in-flight encode and returns
// the batch in capture order. The queue is closed and reset afterwards.
func (s *Sampler) Stop() ([]frame.Frame, error) {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.recording = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	s.inflight.Wait()

	s.mu.Lock()
	s.closed = true
	batch := s.frames
	s.frames = nil
	ticks := s.seq
	s.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Seq < batch[j].Seq })

	s.logger.Debug("recording stopped", "ticks", ticks, "frames", len(batch))
	return batch, nil
}

// Recording reports whether the ticker is armed.
func (s *Sampler) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Count returns the number of frames queued so far.
func (s *Sampler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *Sampler) loop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.capture()
		}
	}
}

// capture grabs the current image synchronously and hands it to an
// encode goroutine. The sequence number is fixed here, at tick time.
func (s *Sampler) capture() {
	img, err := s.src.Latest()
	if err != nil {
		s.metrics.FramesDropped.Add(context.Background(), 1, observe.Reason("grab"))
		s.logger.Warn("frame grab failed, skipping tick", "error", err)
		return
	}
	at := s.now()

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.inflight.Add(1)
	go s.encode(img, seq, at)
}

func (s *Sampler) encode(img image.Image, seq uint64, at time.Time) {
	defer s.inflight.Done()

	ctx := context.Background()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer s.sem.Release(1)

	start := time.Now()
	f, err := s.enc.Encode(img, seq, at)
	s.metrics.EncodeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.FramesDropped.Add(ctx, 1, observe.Reason("encode"))
		s.logger.Warn("frame encode failed", "seq", seq, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.metrics.FramesDropped.Add(ctx, 1, observe.Reason("late"))
		s.logger.Warn("dropping frame encoded after stop", "seq", seq)
		return
	}
	s.frames = append(s.frames, f)
	s.metrics.FramesCaptured.Add(ctx, 1)
}
