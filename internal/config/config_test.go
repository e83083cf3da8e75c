package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ironsheep/pixel-profile-mcp/internal/detection"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Validate changed defaults (-want +got):\n%s", diff)
	}
	if cfg.Corner.Validate() != nil || cfg.Transition.Validate() != nil {
		t.Error("default detector parameters do not validate")
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"log_level": "debug",
		"corner_backend": "subpixel",
		"extract_rule": "luma",
		"cache_size": 8,
		"corner": {"min_distance": 5, "quality_level": 0.2, "block_size": 1, "max_corners": 4},
		"transition": {"threshold": 40}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := DefaultConfig()
	want.LogLevel = "debug"
	want.CornerBackend = "subpixel"
	want.ExtractRule = "luma"
	want.CacheSize = 8
	want.Corner = detection.CornerParams{MinDistance: 5, QualityLevel: 0.2, BlockSize: 1, MaxCorners: 4}
	want.Transition.Threshold = 40
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.Rule() != detection.ExtractLuma || cfg.Level() != slog.LevelDebug {
		t.Errorf("parsed rule/level: got %v/%v", cfg.Rule(), cfg.Level())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.json")} {
		cfg, err := Load(path)
		if err != nil {
			t.Errorf("Load(%q) failed: %v", path, err)
		}
		if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
			t.Errorf("Load(%q) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestLoad_BadJSON(t *testing.T) {
	if _, err := Load(writeConfig(t, `{"cache_size": "lots"`)); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestValidate_Normalizes(t *testing.T) {
	cfg := &Config{
		LogLevel:       "loud",
		ExtractRule:    "chroma",
		Classification: "sideways",
		CacheSize:      -3,
		Corner:         detection.CornerParams{MinDistance: -1, QualityLevel: 2, BlockSize: 0, MaxCorners: 0},
		Transition:     detection.TransitionParams{Threshold: 0, WindowSize: -2},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	want := DefaultConfig()
	want.CacheSize = 0
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("normalized config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CornerBackend = "quantum"
	if err := cfg.Validate(); !errors.Is(err, detection.ErrUnknownBackend) {
		t.Errorf("Validate: got %v, want ErrUnknownBackend", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvExtractRule, "lightness")
	t.Setenv(EnvClassification, ClassifyGradientSign)
	t.Setenv(EnvCacheSize, "0")
	t.Setenv(EnvCornerBackend, "")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Level() != slog.LevelWarn {
		t.Errorf("Level: got %v, want WARN", cfg.Level())
	}
	if cfg.Rule() != detection.ExtractLightness {
		t.Errorf("Rule: got %v, want lightness", cfg.Rule())
	}
	if cfg.TransitionClassification() != detection.ClassifyGradientSign {
		t.Error("classification not overridden")
	}
	if cfg.CacheSize != 0 {
		t.Errorf("CacheSize: got %d, want 0", cfg.CacheSize)
	}
	if cfg.CornerBackend != "harris" {
		t.Errorf("empty env var replaced backend: got %q", cfg.CornerBackend)
	}

	t.Setenv(EnvCacheSize, "many")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for non-numeric cache size")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"", slog.LevelInfo, true},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
