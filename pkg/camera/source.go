package camera

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"
)

// Source is a live pixel source. Read blocks until the next frame.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener acquires a Source for the given configuration.
type Opener func(cfg Config) (Source, error)

// Sentinel errors for camera conditions.
var (
	// ErrDeviceAccess means the device could not be opened or produced no frames.
	ErrDeviceAccess = errors.New("camera: device access failed")

	// ErrNotOpen is returned by Latest before Open succeeds or after Close.
	ErrNotOpen = errors.New("camera: not open")

	// ErrNoFrame is returned by Latest when no frame has been read yet.
	ErrNoFrame = errors.New("camera: no frame available")

	// ErrClosed is returned by a Source after Close.
	ErrClosed = errors.New("camera: source closed")
)

// DeviceError describes a failed attempt to acquire the camera.
type DeviceError struct {
	DeviceID int
	Err      error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera %d: %v", e.DeviceID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Is reports ErrDeviceAccess so callers can match any DeviceError.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceAccess
}

// Message is the user-facing text shown when the camera is unavailable.
func (e *DeviceError) Message() string {
	return "Could not access the camera. Check that a webcam is connected and that permission was granted, then retry."
}

// Pattern is a synthetic Source that renders a moving bar. Each Read
// waits one frame interval and advances the bar by one step.
type Pattern struct {
	width, height int
	interval      time.Duration

	mu     sync.Mutex
	step   int
	closed bool
}

// NewPattern creates a synthetic source of the given size producing
// frames every interval (0 means as fast as Read is called).
func NewPattern(width, height int, interval time.Duration) *Pattern {
	return &Pattern{width: width, height: height, interval: interval}
}

// PatternOpener opens a 30 FPS Pattern sized from the config.
func PatternOpener(cfg Config) (Source, error) {
	return NewPattern(cfg.Width, cfg.Height, time.Second/30), nil
}

// Read renders the next frame.
func (p *Pattern) Read() (image.Image, error) {
	if p.interval > 0 {
		time.Sleep(p.interval)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	step := p.step
	p.step++
	p.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	barW := p.width / 8
	if barW == 0 {
		barW = 1
	}
	x0 := (step * barW) % p.width
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			c := color.RGBA{R: 30, G: 30, B: 60, A: 255}
			if x >= x0 && x < x0+barW {
				c = color.RGBA{R: 240, G: 200, B: 40, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

// Close stops the pattern.
func (p *Pattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
