// Package camera owns the local capture device: it opens the stream,
// keeps the latest frame for samplers, feeds a live preview sink and
// releases the hardware on Close.
package camera

import "time"

// Config holds camera configuration parameters.
type Config struct {
	// DeviceID is the capture device index (0 is the default webcam).
	DeviceID int `json:"device_id" yaml:"device_id"`

	// Requested capture resolution. Drivers may pick the nearest mode.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// PreviewFPS caps how often preview frames are pushed to the sink.
	PreviewFPS int `json:"preview_fps" yaml:"preview_fps"`

	// PreviewQuality is the preview JPEG quality 1-100.
	PreviewQuality int `json:"preview_quality" yaml:"preview_quality"`

	// OpenTimeout bounds how long Open waits for the first frame.
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`
}

// Limits for Validate.
const (
	MinWidth      = 160
	MinHeight     = 120
	MaxWidth      = 3840
	MaxHeight     = 2160
	MaxPreviewFPS = 30
)

// DefaultConfig returns the VGA configuration: 640x480 matches the
// sampler's canonical raster, so frames are not rescaled twice.
func DefaultConfig() Config {
	return Config{
		DeviceID:       0,
		Width:          640,
		Height:         480,
		PreviewFPS:     10,
		PreviewQuality: 70,
		OpenTimeout:    5 * time.Second,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.DeviceID < 0 {
		errors = append(errors, "device_id must be >= 0")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.PreviewFPS < 0 || c.PreviewFPS > MaxPreviewFPS {
		errors = append(errors, "preview_fps must be between 0 (disabled) and 30")
	}
	if c.PreviewQuality < 1 || c.PreviewQuality > 100 {
		errors = append(errors, "preview_quality must be between 1 and 100")
	}
	if c.OpenTimeout <= 0 {
		errors = append(errors, "open_timeout must be positive")
	}

	return errors
}
