package camera

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

// maxReadErrors is how many consecutive failed reads end the stream.
const maxReadErrors = 10

// Manager is the single owner of the camera stream. Only its reader
// goroutine touches the Source; everyone else reads the cached frame.
type Manager struct {
	cfg    Config
	open   Opener
	logger *slog.Logger

	// openMu serialises Open so only one device is ever acquired.
	openMu sync.Mutex

	mu      sync.RWMutex
	src     Source
	latest  image.Image
	live    bool
	readErr error
	stop    chan struct{}
	done    chan struct{}

	sinkMu sync.RWMutex
	sink   func(jpeg []byte)
}

// NewManager creates a camera manager. Nothing is opened until Open.
func NewManager(cfg Config, open Opener, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		open:   open,
		logger: logger.With("component", "camera"),
	}
}

// Config returns the camera configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// OnPreview sets the sink that receives JPEG preview frames.
func (m *Manager) OnPreview(fn func(jpeg []byte)) {
	m.sinkMu.Lock()
	m.sink = fn
	m.sinkMu.Unlock()
}

// Open acquires the device and blocks until the first frame arrives.
// It is a no-op when the stream is already live. Any failure is
// returned as a *DeviceError and leaves the manager closed; calling
// Open again retries.
func (m *Manager) Open(ctx context.Context) error {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	m.mu.Lock()
	if m.src != nil && m.live {
		m.mu.Unlock()
		return nil
	}
	old, oldStop, oldDone := m.detachLocked()
	m.mu.Unlock()
	release(old, oldStop, oldDone)

	src, err := m.open(m.cfg)
	if err != nil {
		m.logger.Warn("camera open failed", "device", m.cfg.DeviceID, "error", err)
		return &DeviceError{DeviceID: m.cfg.DeviceID, Err: err}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	first := make(chan struct{})

	m.mu.Lock()
	m.src = src
	m.live = true
	m.readErr = nil
	m.stop = stop
	m.done = done
	m.mu.Unlock()

	go m.readLoop(src, stop, done, first)

	timer := time.NewTimer(m.cfg.OpenTimeout)
	defer timer.Stop()

	select {
	case <-first:
		m.logger.Info("camera open", "device", m.cfg.DeviceID, "width", m.cfg.Width, "height", m.cfg.Height)
		return nil
	case <-done:
		m.mu.RLock()
		err = m.readErr
		m.mu.RUnlock()
		if err == nil {
			err = ErrClosed
		}
	case <-timer.C:
		err = errors.New("no frame received before timeout")
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.Close()
	m.logger.Warn("camera produced no frames", "device", m.cfg.DeviceID, "error", err)
	return &DeviceError{DeviceID: m.cfg.DeviceID, Err: err}
}

// Live reports whether the stream is open and delivering frames.
func (m *Manager) Live() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.src != nil && m.live
}

// Latest returns the most recent frame. The image must not be modified.
func (m *Manager) Latest() (image.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.src == nil || !m.live {
		return nil, ErrNotOpen
	}
	if m.latest == nil {
		return nil, ErrNoFrame
	}
	return m.latest, nil
}

// Close stops the reader and releases the device. Safe to call repeatedly.
func (m *Manager) Close() error {
	m.mu.Lock()
	src, stop, done := m.detachLocked()
	m.mu.Unlock()
	return release(src, stop, done)
}

func (m *Manager) detachLocked() (Source, chan struct{}, chan struct{}) {
	src, stop, done := m.src, m.stop, m.done
	m.src = nil
	m.latest = nil
	m.live = false
	m.stop = nil
	m.done = nil
	return src, stop, done
}

// release waits for the reader to leave Read before closing the source.
func release(src Source, stop, done chan struct{}) error {
	if src == nil {
		return nil
	}
	close(stop)
	<-done
	return src.Close()
}

func (m *Manager) readLoop(src Source, stop, done, first chan struct{}) {
	defer close(done)

	var (
		errCount    int
		sentFirst   bool
		lastPreview time.Time
	)

	for {
		select {
		case <-stop:
			return
		default:
		}

		img, err := src.Read()
		if err != nil {
			errCount++
			if errCount < maxReadErrors {
				continue
			}
			m.mu.Lock()
			if m.src == src {
				m.live = false
				m.latest = nil
			}
			m.readErr = err
			m.mu.Unlock()
			m.logger.Error("camera stream lost", "error", err)
			return
		}
		errCount = 0

		m.mu.Lock()
		if m.src == src {
			m.latest = img
		}
		m.mu.Unlock()

		if !sentFirst {
			sentFirst = true
			close(first)
		}

		if m.previewDue(lastPreview) {
			lastPreview = time.Now()
			m.sendPreview(img)
		}
	}
}

func (m *Manager) previewDue(last time.Time) bool {
	if m.cfg.PreviewFPS <= 0 {
		return false
	}
	m.sinkMu.RLock()
	hasSink := m.sink != nil
	m.sinkMu.RUnlock()
	return hasSink && time.Since(last) >= time.Second/time.Duration(m.cfg.PreviewFPS)
}

func (m *Manager) sendPreview(img image.Image) {
	data, err := EncodeJPEG(img, m.cfg.PreviewQuality)
	if err != nil {
		m.logger.Debug("preview encode failed", "error", err)
		return
	}
	m.sinkMu.RLock()
	sink := m.sink
	m.sinkMu.RUnlock()
	if sink != nil {
		sink(data)
	}
}

// EncodeJPEG converts an image to JPEG bytes.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
