package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/AlverezYari/juststop/pkg/camera"
	"github.com/AlverezYari/juststop/pkg/frame"
	"github.com/goccy/go-json"
)

const appName = "juststop"

const (
	ModePolling  = "polling"
	ModeCallback = "callback"
)

// CaptureConfig controls how frames are pulled and prepared
type CaptureConfig struct {
	Mode           string `json:"mode"`
	Decode         string `json:"decode"`
	Mirror         bool   `json:"mirror"`
	Format         string `json:"format"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	TickIntervalMS int    `json:"tick_interval_ms"`
	OpenTimeoutMS  int    `json:"open_timeout_ms"`
}

type ServerConfig struct {
	Enabled bool   `json:"enabled"`
	IP      string `json:"ip"`
	Port    string `json:"port"`
}

type LogConfig struct {
	Path  string `json:"path"`
	Level string `json:"level"`
}

type AppConfig struct {
	Backend   string                   `json:"backend"`
	Capture   CaptureConfig            `json:"capture"`
	Server    ServerConfig             `json:"server"`
	Log       LogConfig                `json:"log"`
	Synthetic []camera.SyntheticDevice `json:"synthetic,omitempty"`
}

// Default config
func Default() *AppConfig {
	return &AppConfig{
		Backend: camera.DefaultBackend,
		Capture: CaptureConfig{
			Mode:          ModePolling,
			Decode:        frame.RGBA.String(),
			Format:        camera.HighestFrameRate.String(),
			OpenTimeoutMS: 5000,
		},
		Server: ServerConfig{
			IP:   "localhost",
			Port: "8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Dir is the XDG config directory for the app, ~/.config/juststop by default
func Dir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to determine user config directory: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// DefaultPath returns the config file path, creating its directory
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path over the defaults. A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	config := Default()

	configFile, err := os.Open(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer configFile.Close()

	data, err := io.ReadAll(configFile)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Save writes the config to path
func Save(path string, config *AppConfig) error {
	configBytes, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling config: %w", err)
	}

	if err := os.WriteFile(path, configBytes, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

func (c *AppConfig) Validate() error {
	switch c.Capture.Mode {
	case ModePolling, ModeCallback:
	default:
		return fmt.Errorf("capture.mode must be %q or %q, got %q", ModePolling, ModeCallback, c.Capture.Mode)
	}

	policy, err := frame.ParsePolicy(c.Capture.Decode)
	if err != nil {
		return fmt.Errorf("capture.decode: %w", err)
	}
	if policy == frame.Raw && c.Capture.Mirror {
		return fmt.Errorf("capture.mirror needs the %q decode policy", frame.RGBA)
	}

	req, err := camera.ParsePolicy(c.Capture.Format)
	if err != nil {
		return fmt.Errorf("capture.format: %w", err)
	}
	if req == camera.Closest && (c.Capture.Width <= 0 || c.Capture.Height <= 0) {
		return fmt.Errorf("capture.format %q needs capture.width and capture.height", req)
	}

	if c.Capture.TickIntervalMS < 0 {
		return fmt.Errorf("capture.tick_interval_ms must not be negative")
	}
	if c.Capture.OpenTimeoutMS <= 0 {
		return fmt.Errorf("capture.open_timeout_ms must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	return nil
}

// FormatRequest is the stream mode to ask the camera for.
func (c CaptureConfig) FormatRequest() camera.FormatRequest {
	policy, _ := camera.ParsePolicy(c.Format)
	return camera.FormatRequest{Policy: policy, Width: c.Width, Height: c.Height}
}

func (c CaptureConfig) FrameOptions() frame.Options {
	policy, _ := frame.ParsePolicy(c.Decode)
	return frame.Options{Policy: policy, Mirror: c.Mirror}
}

func (c CaptureConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

func (c CaptureConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutMS) * time.Millisecond
}
