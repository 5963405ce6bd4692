// Package config loads signlens settings from an optional YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-signlens/pkg/camera"
	"github.com/teslashibe/go-signlens/pkg/sampler"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Default server configuration.
const (
	DefaultPort          = "8080"
	DefaultSubmitTimeout = 60 * time.Second
)

// Config is the complete process configuration.
type Config struct {
	// Provider selects the interpretation backend: gemini or openai.
	Provider string `yaml:"provider"`

	// APIKey is read from the environment, never from the file.
	APIKey string `yaml:"-"`

	// Model overrides the backend's default model.
	Model string `yaml:"model"`

	// BaseURL overrides the backend endpoint.
	BaseURL string `yaml:"base_url"`

	// Prompt overrides the instruction sent with each batch.
	Prompt string `yaml:"prompt"`

	// SubmitTimeout bounds one interpretation call.
	SubmitTimeout time.Duration `yaml:"submit_timeout"`

	Camera  camera.Config  `yaml:"camera"`
	Sampler sampler.Config `yaml:"sampler"`
	Server  Server         `yaml:"server"`
	Log     Log            `yaml:"log"`
}

// Server holds HTTP settings.
type Server struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// Log holds logging settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider:      ProviderGemini,
		SubmitTimeout: DefaultSubmitTimeout,
		Camera:        camera.DefaultConfig(),
		Sampler:       sampler.DefaultConfig(),
		Server:        Server{Port: DefaultPort},
		Log:           Log{Level: "info", Format: "text"},
	}
}

// Override adjusts a loaded configuration before validation, for
// example from command line flags.
type Override func(*Config)

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), the environment and overrides, then
// resolves the API key for the chosen provider and validates.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	for _, o := range overrides {
		o(cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = cfg.apiKeyFromEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults without reading
// the environment. Useful in tests.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	c.Provider = strings.ToLower(getEnv("SIGNLENS_PROVIDER", c.Provider))
	c.Model = getEnv("SIGNLENS_MODEL", c.Model)
	c.BaseURL = getEnv("SIGNLENS_BASE_URL", c.BaseURL)
	c.Prompt = getEnv("SIGNLENS_PROMPT", c.Prompt)
	c.SubmitTimeout = getEnvAsDuration("SIGNLENS_SUBMIT_TIMEOUT", c.SubmitTimeout)

	c.Camera.DeviceID = getEnvAsInt("SIGNLENS_CAMERA_DEVICE", c.Camera.DeviceID)
	c.Sampler.Interval = getEnvAsDuration("SIGNLENS_INTERVAL", c.Sampler.Interval)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.StaticDir = getEnv("SIGNLENS_STATIC_DIR", c.Server.StaticDir)

	c.Log.Level = getEnv("SIGNLENS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("SIGNLENS_LOG_FORMAT", c.Log.Format)
}

// apiKeyFromEnv reads GEMINI_API_KEY (or GOOGLE_API_KEY) for gemini and
// OPENAI_API_KEY for openai. SIGNLENS_API_KEY wins for both.
func (c *Config) apiKeyFromEnv() string {
	if key := os.Getenv("SIGNLENS_API_KEY"); key != "" {
		return key
	}
	switch c.Provider {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY"))
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{ProviderGemini, ProviderOpenAI}, c.Provider) {
		errs = append(errs, fmt.Errorf("provider %q is invalid; valid values: gemini, openai", c.Provider))
	}
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("no API key for provider %q; set %s", c.Provider, c.keyVar()))
	}
	if c.SubmitTimeout <= 0 {
		errs = append(errs, errors.New("submit_timeout must be positive"))
	}
	for _, problem := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", problem))
	}
	if c.Sampler.Interval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("sampler.interval %s is below 100ms", c.Sampler.Interval))
	}
	if c.Sampler.MaxInFlight < 1 {
		errs = append(errs, errors.New("sampler.max_in_flight must be at least 1"))
	}
	if c.Sampler.FrameWidth < 1 || c.Sampler.FrameHeight < 1 {
		errs = append(errs, errors.New("sampler frame size must be positive"))
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", c.Log.Level))
	}

	return errors.Join(errs...)
}

func (c *Config) keyVar() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}

// getEnv returns the value of key, or defaultVal if unset.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
