package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/turntable/internal/validate"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 << 10

// ControllerConfig describes how to reach the turntable controller.
type ControllerConfig struct {
	BaseURL      string `yaml:"base_url" default:"http://127.0.0.1:8000" validate:"required,http_url"`
	StatusFields string `yaml:"status_fields" default:"auto" validate:"oneof=plain suffixed auto"` // key naming of /status
	TimeoutMs    int    `yaml:"timeout_ms" default:"2000" validate:"min=100,max=60000"`
}

// PollConfig sets how often /status is fetched.
type PollConfig struct {
	IntervalMs int `yaml:"interval_ms" default:"1000" validate:"min=100,max=60000"`
}

// AxisDisplay is the caption of one widget.
type AxisDisplay struct {
	Label  string `yaml:"label"`
	Letter string `yaml:"letter" validate:"max=2"` // dial center
}

// GaugeColors is the color pair of the gauge variant.
type GaugeColors struct {
	Track    string `yaml:"track" default:"#e5e7eb" validate:"hexcolor"`
	Progress string `yaml:"progress" default:"#3b82f6" validate:"hexcolor"`
}

// DisplayConfig holds the widget settings shared by both axes.
type DisplayConfig struct {
	Variant    string      `yaml:"variant" default:"dial" validate:"oneof=dial gauge"`
	Size       float64     `yaml:"size" default:"200" validate:"gte=50,lte=1000"`
	Horizontal AxisDisplay `yaml:"horizontal"`
	Vertical   AxisDisplay `yaml:"vertical"`
	Colors     GaugeColors `yaml:"colors"`
}

// SetDefaults gives each axis its own label and letter.
func (d *DisplayConfig) SetDefaults() {
	if d.Horizontal.Label == "" {
		d.Horizontal.Label = "Horizontal"
	}
	if d.Horizontal.Letter == "" {
		d.Horizontal.Letter = "H"
	}
	if d.Vertical.Label == "" {
		d.Vertical.Label = "Vertical"
	}
	if d.Vertical.Letter == "" {
		d.Vertical.Letter = "V"
	}
}

// WebConfig configures the panel web server. Port 0 runs the panel headless.
type WebConfig struct {
	Port int `yaml:"port" default:"8080" validate:"min=0,max=65535"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics" validate:"startswith=/"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level" validate:"min=0,max=4"`                     // 0=off, 1=info, 2=live, 3=verbose, 4=trace
	LogFormat  string `yaml:"log_format" default:"console" validate:"oneof=console json"` // zerolog output
	Simulate   bool   `yaml:"simulate"`                                                // serve an in-process controller and poll it
}

// Config aggregates all application configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Poll       PollConfig       `yaml:"poll"`
	Display    DisplayConfig    `yaml:"display"`
	Web        WebConfig        `yaml:"web"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// Default returns the configuration used when no file sets anything.
func Default() (*Config, error) {
	var cfg Config
	if err := validate.Defaults(&cfg); err != nil {
		return nil, err
	}
	cfg.Display.SetDefaults()
	if err := validate.Check(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ValidateConfigPath accepts only .yaml files located directly in a
// directory named "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file %q must be in a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration. Defaults are set
// first so that explicit zero values in the file are kept.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := validate.Defaults(&cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.Display.SetDefaults()
	cfg.Controller.BaseURL = strings.TrimRight(cfg.Controller.BaseURL, "/")

	if err := validate.Check(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// PollInterval returns the delay between two polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.IntervalMs) * time.Millisecond
}

// Timeout returns the per-request timeout of the controller client.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Controller.TimeoutMs) * time.Millisecond
}
