// Package config holds the run settings for pixf and the layering used to
// build them: defaults, an optional YAML file, then PIXF_* environment
// variables. Command line flags are applied last by the cmd package.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for settings the pipeline cannot run with.
var ErrInvalid = errors.New("invalid configuration")

// Supported output formats.
var formats = []string{"webp", "png"}

type Config struct {
	// OutputDir is where unique images are written. Empty means
	// "<pdf dir>/<pdf stem>_export".
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
	Workers   int    `yaml:"workers"`

	// GridSize is the side of the average-hash grid; 8 yields a 64-bit fingerprint.
	GridSize int `yaml:"grid_size"`
	// Background is the padding colour trimmed before hashing, as "#rrggbb"
	// or "#rgb". Fully transparent pixels are trimmed regardless.
	Background string `yaml:"background"`
	// CropTolerance is the per-channel difference (0-255) still counted as background.
	CropTolerance int `yaml:"crop_tolerance"`
	// MaxDistance is the Hamming distance under which two fingerprints are
	// the same image. 0 requires an exact match.
	MaxDistance int `yaml:"max_distance"`

	// Deterministic commits duplicate checks in extraction order.
	Deterministic bool `yaml:"deterministic"`
	// Strict turns write failures into a failed run.
	Strict bool `yaml:"strict"`

	Password string `yaml:"password"`
	Report   string `yaml:"report"`
	Verbose  bool   `yaml:"verbose"`
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		Format:        "webp",
		Workers:       4,
		GridSize:      8,
		Background:    "#ffffff",
		CropTolerance: 8,
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PIXF_WORKERS", &c.Workers},
		{"PIXF_GRID_SIZE", &c.GridSize},
		{"PIXF_CROP_TOLERANCE", &c.CropTolerance},
		{"PIXF_MAX_DISTANCE", &c.MaxDistance},
	}
	for _, v := range ints {
		val := getenv(v.key)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalid, v.key, val)
		}
		*v.dst = n
	}
	if val := getenv("PIXF_FORMAT"); val != "" {
		c.Format = val
	}
	if val := getenv("PIXF_BACKGROUND"); val != "" {
		c.Background = val
	}
	if val := getenv("PIXF_PASSWORD"); val != "" {
		c.Password = val
	}
	return nil
}

// Validate normalizes Format and reports the first unusable setting.
func (c *Config) Validate() error {
	c.Format = strings.ToLower(strings.TrimPrefix(c.Format, "."))
	supported := false
	for _, f := range formats {
		if c.Format == f {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: unsupported format %q (supported: %s)", ErrInvalid, c.Format, strings.Join(formats, ", "))
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Workers)
	}
	if c.GridSize < 2 || c.GridSize > 64 {
		return fmt.Errorf("%w: grid size must be between 2 and 64, got %d", ErrInvalid, c.GridSize)
	}
	if _, err := c.BackgroundColor(); err != nil {
		return err
	}
	if c.CropTolerance < 0 || c.CropTolerance > 255 {
		return fmt.Errorf("%w: crop tolerance must be between 0 and 255, got %d", ErrInvalid, c.CropTolerance)
	}
	if c.MaxDistance < 0 || c.MaxDistance >= c.GridSize*c.GridSize {
		return fmt.Errorf("%w: max distance must be between 0 and %d, got %d", ErrInvalid, c.GridSize*c.GridSize-1, c.MaxDistance)
	}
	return nil
}

// BackgroundColor parses Background. The leading "#" is optional.
func (c *Config) BackgroundColor() (color.RGBA, error) {
	hex := strings.TrimSpace(c.Background)
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	if len(hex) != 4 && len(hex) != 7 {
		return color.RGBA{}, fmt.Errorf("%w: background %q is not a hex colour", ErrInvalid, c.Background)
	}
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: background %q: %w", ErrInvalid, c.Background, err)
	}
	r, g, b := parsed.RGB255()
	return color.RGBA{r, g, b, 255}, nil
}
