package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfigPath     = "PIXEL_PROFILE_CONFIG"
	EnvLogLevel       = "PIXEL_PROFILE_LOG_LEVEL"
	EnvCornerBackend  = "PIXEL_PROFILE_CORNER_BACKEND"
	EnvExtractRule    = "PIXEL_PROFILE_EXTRACT_RULE"
	EnvClassification = "PIXEL_PROFILE_CLASSIFICATION"
	EnvCacheSize      = "PIXEL_PROFILE_CACHE_SIZE"
)

// Classification names accepted in the config file.
const (
	ClassifyLookAhead    = "look-ahead"
	ClassifyGradientSign = "gradient-sign"
)

// Config holds the server's runtime settings. Fields may be loaded from a
// JSON file and overridden by environment variables.
type Config struct {
	LogLevel       string `json:"log_level"`
	CornerBackend  string `json:"corner_backend"`
	ExtractRule    string `json:"extract_rule"`
	Classification string `json:"classification"`

	// CacheSize is the number of detection results of each kind kept per
	// server. Zero disables the cache.
	CacheSize int `json:"cache_size"`

	// Detector defaults used when a tool call leaves a parameter out.
	Corner     detection.CornerParams     `json:"corner"`
	Transition detection.TransitionParams `json:"transition"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:       "info",
		CornerBackend:  "harris",
		ExtractRule:    detection.ExtractFirstByte.String(),
		Classification: ClassifyLookAhead,
		CacheSize:      256,
		Corner:         detection.DefaultCornerParams(),
		Transition:     detection.DefaultTransitionParams(),
	}
}

// Validate normalizes values to safe ranges. Out-of-range detector defaults
// are reset field by field. Only an unknown corner backend is an error, since
// no other backend can be substituted silently.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		c.LogLevel = def.LogLevel
	}
	if _, ok := detection.ParseExtractRule(c.ExtractRule); !ok {
		c.ExtractRule = def.ExtractRule
	}
	if c.Classification != ClassifyLookAhead && c.Classification != ClassifyGradientSign {
		c.Classification = def.Classification
	}
	if c.CacheSize < 0 {
		c.CacheSize = 0
	}

	if !(c.Corner.MinDistance > 0) {
		c.Corner.MinDistance = def.Corner.MinDistance
	}
	if !(c.Corner.QualityLevel > 0 && c.Corner.QualityLevel <= 1) {
		c.Corner.QualityLevel = def.Corner.QualityLevel
	}
	if c.Corner.BlockSize < 1 {
		c.Corner.BlockSize = def.Corner.BlockSize
	}
	if c.Corner.MaxCorners < 1 {
		c.Corner.MaxCorners = def.Corner.MaxCorners
	}
	if !(c.Transition.Threshold > 0) {
		c.Transition.Threshold = def.Transition.Threshold
	}
	if c.Transition.WindowSize < 1 {
		c.Transition.WindowSize = def.Transition.WindowSize
	}

	if c.CornerBackend == "" {
		c.CornerBackend = def.CornerBackend
	}
	for _, name := range detection.CornerBackends() {
		if name == c.CornerBackend {
			return nil
		}
	}
	return fmt.Errorf("%w: %q (available: %v)", detection.ErrUnknownBackend, c.CornerBackend, detection.CornerBackends())
}

// Load reads configuration from the JSON file at path. An empty path or a
// missing file yields DefaultConfig().
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from PIXEL_PROFILE_* environment variables.
// Unset or empty variables leave the field alone.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvCornerBackend); v != "" {
		c.CornerBackend = v
	}
	if v := os.Getenv(EnvExtractRule); v != "" {
		c.ExtractRule = v
	}
	if v := os.Getenv(EnvClassification); v != "" {
		c.Classification = v
	}
	if v := os.Getenv(EnvCacheSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheSize, err)
		}
		c.CacheSize = n
	}
	return nil
}

// Rule returns the parsed extraction rule.
func (c *Config) Rule() detection.ExtractRule {
	rule, _ := detection.ParseExtractRule(c.ExtractRule)
	return rule
}

// TransitionClassification returns the parsed classification.
func (c *Config) TransitionClassification() detection.Classification {
	if c.Classification == ClassifyGradientSign {
		return detection.ClassifyGradientSign
	}
	return detection.ClassifyLookAhead
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel accepts debug, info, warn and error in any case.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
