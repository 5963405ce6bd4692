package camera

// Preset names for common capture resolutions
const (
	PresetVGA   = "vga"
	Preset720p  = "720p"
	Preset1080p = "1080p"
)

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetVGA, Preset720p, Preset1080p}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	var cfg Config
	switch name {
	case PresetVGA:
		cfg = DefaultConfig()
	case Preset720p:
		cfg = HD720Config()
	case Preset1080p:
		cfg = HD1080Config()
	default:
		return nil
	}
	return &cfg
}

// HD720Config returns 720p HD capture. Frames are still downscaled to
// the sampler raster; the higher source resolution only sharpens detail.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// HD1080Config returns 1080p capture with a lower preview rate.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.PreviewFPS = 5
	return cfg
}
