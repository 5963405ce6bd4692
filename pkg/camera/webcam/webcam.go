// Package webcam implements camera.Source on top of OpenCV (gocv).
package webcam

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-signlens/pkg/camera"
)

// Webcam reads frames from a local capture device.
type Webcam struct {
	mu     sync.Mutex
	dev    *gocv.VideoCapture
	mat    gocv.Mat // reused between reads
	closed bool
}

// Open opens the capture device named by cfg.DeviceID. Only video is
// requested; there is no audio path in OpenCV capture.
func Open(cfg camera.Config) (camera.Source, error) {
	dev, err := gocv.VideoCaptureDevice(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w", cfg.DeviceID, err)
	}
	if !dev.IsOpened() {
		dev.Close()
		return nil, fmt.Errorf("device %d not available", cfg.DeviceID)
	}

	dev.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	dev.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))

	return &Webcam{dev: dev, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame and converts it to a Go image.
func (w *Webcam) Read() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, camera.ErrClosed
	}
	if ok := w.dev.Read(&w.mat); !ok {
		return nil, fmt.Errorf("cannot read frame")
	}
	if w.mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}
	return w.mat.ToImage()
}

// Close releases the device. The camera activity LED turns off here.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.mat.Close()
	return w.dev.Close()
}
