// Package frame encodes sampled camera images into transport-safe
// still frames for batch submission.
package frame

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"time"

	"golang.org/x/image/draw"
)

// Canonical raster size every frame is scaled to.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// MimePNG is the only encoding produced by Encoder.
const MimePNG = "image/png"

// ErrNilImage is returned when Encode is given no image.
var ErrNilImage = errors.New("frame: nil image")

// Frame is one encoded still. Frames are never mutated after Encode
// returns them.
type Frame struct {
	// Seq is the 1-based capture index within a recording.
	Seq uint64 `json:"seq"`

	// CapturedAt is when the source image was grabbed, not when encoding finished.
	CapturedAt time.Time `json:"captured_at"`

	MimeType string `json:"mime_type"`

	// Data is the base64 (standard alphabet) image payload.
	Data string `json:"data"`
}

// Bytes decodes the payload back to raw image bytes.
func (f Frame) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// DataURL renders the frame as a data: URL.
func (f Frame) DataURL() string {
	return "data:" + f.MimeType + ";base64," + f.Data
}

// Encoder scales images onto a fixed-size raster and encodes them as PNG.
// The zero value uses the canonical 640x480 size.
type Encoder struct {
	Width  int
	Height int
}

// NewEncoder returns an Encoder for the given raster size.
func NewEncoder(width, height int) *Encoder {
	return &Encoder{Width: width, Height: height}
}

func (e *Encoder) size() (int, int) {
	w, h := e.Width, e.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// Render draws img stretched onto a new raster of the encoder's size.
func (e *Encoder) Render(img image.Image) *image.RGBA {
	w, h := e.size()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Encode renders img and returns it as a base64 PNG frame.
func (e *Encoder) Encode(img image.Image, seq uint64, capturedAt time.Time) (Frame, error) {
	if img == nil {
		return Frame{}, ErrNilImage
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, e.Render(img)); err != nil {
		return Frame{}, fmt.Errorf("frame: encode png: %w", err)
	}

	return Frame{
		Seq:        seq,
		CapturedAt: capturedAt,
		MimeType:   MimePNG,
		Data:       base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}
