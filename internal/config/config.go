// Package config provides configuration loading for go-pano commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-pano/pkg/capture"
)

// Default network configuration.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8765
)

// Framing names accepted by Server.Framing.
const (
	FramingEnvelope = "envelope"
	FramingLegacy   = "legacy"
)

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Camera  CameraConfig   `yaml:"camera"`
	Capture capture.Config `yaml:"capture"`
	Crop    CropConfig     `yaml:"crop"`
	Output  OutputConfig   `yaml:"output"`
	Log     LogConfig      `yaml:"log"`
}

// ServerConfig configures the network service.
type ServerConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Framing    string        `yaml:"framing"`     // "envelope" or "legacy"
	WireFormat string        `yaml:"wire_format"` // ".jpg" or ".png"
	Linger     time.Duration `yaml:"linger"`      // How long to wait for the consumer to close
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device string `yaml:"device"` // Device index ("0") or a file/stream URL
	Width  int    `yaml:"width"`  // 0 keeps the device default
	Height int    `yaml:"height"` // 0 keeps the device default
}

// CropConfig holds the rectangle cropper tunables.
type CropConfig struct {
	Padding int `yaml:"padding"` // Constant border added before contour search
	Kernel  int `yaml:"kernel"`  // Erosion structuring element size
}

// OutputConfig controls where artifacts are persisted.
type OutputConfig struct {
	FramesDir  string `yaml:"frames_dir"`
	ResultDir  string `yaml:"result_dir"`
	Format     string `yaml:"format"` // File extension for persisted images
	SaveFrames bool   `yaml:"save_frames"`
	SaveResult bool   `yaml:"save_result"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings of the reference capture rig.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:       DefaultHost,
			Port:       DefaultPort,
			Framing:    FramingEnvelope,
			WireFormat: ".jpg",
			Linger:     5 * time.Second,
		},
		Camera:  CameraConfig{Device: "0"},
		Capture: capture.DefaultConfig(),
		Crop:    CropConfig{Padding: 10, Kernel: 3},
		Output: OutputConfig{
			FramesDir:  "unstitched",
			ResultDir:  "stitched_image",
			Format:     ".jpg",
			SaveFrames: true,
			SaveResult: true,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file on top of the defaults. An empty path or a
// missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PANO_* environment variables. PORT is
// honoured for platforms that inject it.
func (c *Config) ApplyEnv() error {
	if host := os.Getenv("PANO_HOST"); host != "" {
		c.Server.Host = host
	}
	for _, key := range []string{"PORT", "PANO_PORT"} {
		if v := os.Getenv(key); v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: invalid port %q", key, v)
			}
			c.Server.Port = port
		}
	}
	if dev := os.Getenv("PANO_DEVICE"); dev != "" {
		c.Camera.Device = dev
	}
	if framing := os.Getenv("PANO_FRAMING"); framing != "" {
		c.Server.Framing = framing
	}
	if level := os.Getenv("PANO_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server port must be between 1 and 65535")
	}
	if c.Server.Framing != FramingEnvelope && c.Server.Framing != FramingLegacy {
		errs = append(errs, "server framing must be envelope or legacy")
	}
	if !validFormat(c.Server.WireFormat) {
		errs = append(errs, "server wire_format must be .jpg or .png")
	}
	if c.Server.Linger < 0 {
		errs = append(errs, "server linger must not be negative")
	}
	if c.Camera.Device == "" {
		errs = append(errs, "camera device is required")
	}

	errs = append(errs, c.Capture.Validate()...)

	if c.Crop.Padding < 1 {
		errs = append(errs, "crop padding must be at least 1")
	}
	if c.Crop.Kernel < 3 || c.Crop.Kernel%2 == 0 {
		errs = append(errs, "crop kernel must be an odd size of at least 3")
	}
	if !validFormat(c.Output.Format) {
		errs = append(errs, "output format must be .jpg or .png")
	}

	return errs
}

func validFormat(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
