package camera

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 32
	cfg.Height = 24
	cfg.OpenTimeout = time.Second
	return cfg
}

func patternOpener(interval time.Duration) Opener {
	return func(cfg Config) (Source, error) {
		return NewPattern(cfg.Width, cfg.Height, interval), nil
	}
}

// failingSource always errors on Read.
type failingSource struct {
	closed atomic.Bool
}

func (f *failingSource) Read() (image.Image, error) {
	time.Sleep(time.Millisecond)
	return nil, errors.New("read failed")
}

func (f *failingSource) Close() error {
	f.closed.Store(true)
	return nil
}

func TestManagerOpenAndLatest(t *testing.T) {
	m := NewManager(testConfig(), patternOpener(time.Millisecond), nil)

	if _, err := m.Latest(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Latest before Open = %v, want ErrNotOpen", err)
	}

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()

	if !m.Live() {
		t.Error("expected manager to be live")
	}
	img, err := m.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("frame size = %dx%d, want 32x24", b.Dx(), b.Dy())
	}

	// Open on a live stream is a no-op.
	if err := m.Open(context.Background()); err != nil {
		t.Errorf("second Open failed: %v", err)
	}
}

func TestManagerOpenDenied(t *testing.T) {
	denied := errors.New("permission denied")
	m := NewManager(testConfig(), func(Config) (Source, error) { return nil, denied }, nil)

	err := m.Open(context.Background())
	if !errors.Is(err, ErrDeviceAccess) {
		t.Fatalf("Open = %v, want ErrDeviceAccess", err)
	}
	if !errors.Is(err, denied) {
		t.Errorf("expected cause to be wrapped, got %v", err)
	}
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Message() == "" {
		t.Errorf("expected *DeviceError with a message, got %T", err)
	}
	if m.Live() {
		t.Error("manager should not be live after a failed open")
	}
}

func TestManagerOpenNoFrames(t *testing.T) {
	src := &failingSource{}
	m := NewManager(testConfig(), func(Config) (Source, error) { return src, nil }, nil)

	err := m.Open(context.Background())
	if !errors.Is(err, ErrDeviceAccess) {
		t.Fatalf("Open = %v, want ErrDeviceAccess", err)
	}
	if !src.closed.Load() {
		t.Error("source should be released after a failed open")
	}
}

func TestManagerRetryAfterFailure(t *testing.T) {
	var attempts atomic.Int32
	opener := func(cfg Config) (Source, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("busy")
		}
		return NewPattern(cfg.Width, cfg.Height, time.Millisecond), nil
	}
	m := NewManager(testConfig(), opener, nil)
	defer m.Close()

	if err := m.Open(context.Background()); err == nil {
		t.Fatal("first Open should fail")
	}
	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !m.Live() {
		t.Error("expected live after retry")
	}
}

func TestManagerPreviewSink(t *testing.T) {
	cfg := testConfig()
	cfg.PreviewFPS = 30
	m := NewManager(cfg, patternOpener(time.Millisecond), nil)

	got := make(chan []byte, 16)
	m.OnPreview(func(jpeg []byte) {
		select {
		case got <- jpeg:
		default:
		}
	})

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer m.Close()

	select {
	case data := <-got:
		if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
			t.Error("preview is not a JPEG")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no preview frame delivered")
	}
}

func TestManagerClose(t *testing.T) {
	var src *Pattern
	m := NewManager(testConfig(), func(cfg Config) (Source, error) {
		src = NewPattern(cfg.Width, cfg.Height, time.Millisecond)
		return src, nil
	}, nil)

	if err := m.Open(context.Background()); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := src.Read(); !errors.Is(err, ErrClosed) {
		t.Errorf("source should be closed, Read = %v", err)
	}
	if _, err := m.Latest(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Latest after Close = %v, want ErrNotOpen", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}

	bad := Config{DeviceID: -1, Width: 10, Height: 10, PreviewFPS: 99, PreviewQuality: 0}
	if errs := bad.Validate(); len(errs) != 6 {
		t.Errorf("expected 6 validation errors, got %d: %v", len(errs), errs)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		cfg := GetPreset(name)
		if cfg == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("8k") != nil {
		t.Error("unknown preset should return nil")
	}
	if cfg := GetPreset(PresetVGA); cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("vga = %dx%d", cfg.Width, cfg.Height)
	}
}

// countingOpener opens slow pattern sources and tracks how many are
// still open.
type countingOpener struct {
	opened atomic.Int32
	open   atomic.Int32
}

type countedSource struct {
	*Pattern
	owner *countingOpener
	once  atomic.Bool
}

func (s *countedSource) Close() error {
	if s.once.CompareAndSwap(false, true) {
		s.owner.open.Add(-1)
	}
	return s.Pattern.Close()
}

func (o *countingOpener) Open(cfg Config) (Source, error) {
	time.Sleep(20 * time.Millisecond)
	o.opened.Add(1)
	o.open.Add(1)
	return &countedSource{Pattern: NewPattern(cfg.Width, cfg.Height, time.Millisecond), owner: o}, nil
}

func TestManagerConcurrentOpenSingleDevice(t *testing.T) {
	opener := &countingOpener{}
	m := NewManager(testConfig(), opener.Open, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- m.Open(context.Background()) }()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Open failed: %v", err)
		}
	}

	if n := opener.opened.Load(); n != 1 {
		t.Errorf("device opened %d times, want 1", n)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if n := opener.open.Load(); n != 0 {
		t.Errorf("%d source(s) still open after Close", n)
	}
}
