// Package config loads the grader's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/registration"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "OMR_GRADER_CONFIG"

// Config holds the omr-grader configuration.
type Config struct {
	Logging      LoggingConfig        `yaml:"logging"`
	Registration registration.Options `yaml:"registration"`
	Scoring      omr.Scorer           `yaml:"scoring"`
	Grading      GradingConfig        `yaml:"grading"`
	Metrics      MetricsConfig        `yaml:"metrics"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // prod, dev, local (default: prod)
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// GradingConfig holds sheet grading settings.
type GradingConfig struct {
	// Workers bounds concurrent zone scoring and batch page grading.
	Workers int `yaml:"workers"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{
		Registration: registration.DefaultOptions(),
		Scoring:      omr.DefaultScorer(),
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads configuration from a YAML file. An empty path falls back to
// $OMR_GRADER_CONFIG, then to ./config/omr-grader.yaml, then to Default().
//
// Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = findConfigPath()
	}
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Logging.Env == "" {
		c.Logging.Env = "prod"
	}
	if c.Grading.Workers <= 0 {
		c.Grading.Workers = runtime.NumCPU()
	}
}

// Validate checks the configuration for correctness. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Logging.Env {
	case "prod", "dev", "local":
	default:
		errs = append(errs, fmt.Errorf("logging.env must be prod, dev or local, got %q", c.Logging.Env))
	}

	r := c.Registration
	if r.MaxWorkingDim < 100 {
		errs = append(errs, fmt.Errorf("registration.max_working_dim must be at least 100, got %d", r.MaxWorkingDim))
	}
	// a homography needs four correspondences
	if r.MinMatchCount < 4 {
		errs = append(errs, fmt.Errorf("registration.min_match_count must be at least 4, got %d", r.MinMatchCount))
	}
	if r.RatioTest <= 0 || r.RatioTest >= 1 {
		errs = append(errs, fmt.Errorf("registration.ratio_test must be in (0, 1), got %g", r.RatioTest))
	}
	if r.BinaryRatioTest <= 0 || r.BinaryRatioTest >= 1 {
		errs = append(errs, fmt.Errorf("registration.binary_ratio_test must be in (0, 1), got %g", r.BinaryRatioTest))
	}
	if r.ReprojThreshold <= 0 {
		errs = append(errs, fmt.Errorf("registration.reproj_threshold must be positive, got %g", r.ReprojThreshold))
	}
	if r.MaxFeatures <= 0 {
		errs = append(errs, fmt.Errorf("registration.max_features must be positive, got %d", r.MaxFeatures))
	}
	if r.CLAHEClipLimit <= 0 || r.CLAHETileGrid <= 0 {
		errs = append(errs, fmt.Errorf("registration.clahe_clip_limit and clahe_tile_grid must be positive"))
	}

	v := r.Validation
	for _, band := range []struct {
		name     string
		min, max float64
	}{
		{"relative_scale", v.RelativeScaleMin, v.RelativeScaleMax},
		{"absolute_scale", v.AbsoluteScaleMin, v.AbsoluteScaleMax},
		{"area_ratio", v.AreaRatioMin, v.AreaRatioMax},
	} {
		if band.min <= 0 || band.max <= band.min {
			errs = append(errs, fmt.Errorf("registration.validation.%s_min/max must satisfy 0 < min < max, got %g/%g",
				band.name, band.min, band.max))
		}
	}

	if c.Scoring.MinSignificance < 0 || c.Scoring.MinSignificance >= 1 {
		errs = append(errs, fmt.Errorf("scoring.min_significance must be in [0, 1), got %g", c.Scoring.MinSignificance))
	}
	if c.Scoring.BlurRadius < 0 {
		errs = append(errs, fmt.Errorf("scoring.blur_radius must not be negative, got %g", c.Scoring.BlurRadius))
	}

	return errors.Join(errs...)
}

// findConfigPath returns ./config/omr-grader.yaml if it exists.
func findConfigPath() string {
	path := filepath.Join("config", "omr-grader.yaml")
	if fileExists(path) {
		return path
	}
	return ""
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
