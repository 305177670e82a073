package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[streams]
count = 2
profile = "prod"

[sweep]
max_passes = 5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Streams.Count != 2 {
		t.Fatalf("streams.count = %d, want 2", cfg.Streams.Count)
	}
	if cfg.Streams.Profile != "prod" {
		t.Fatalf("streams.profile = %q, want prod", cfg.Streams.Profile)
	}
	if cfg.Sweep.MaxPasses != 5 {
		t.Fatalf("sweep.max_passes = %d, want 5", cfg.Sweep.MaxPasses)
	}
	// Untouched sections keep defaults.
	if cfg.Stability.MaxSamples != defaultMaxSamples {
		t.Fatalf("stability.max_samples = %d, want %d", cfg.Stability.MaxSamples, defaultMaxSamples)
	}
}

func TestProfileEnvOverride(t *testing.T) {
	t.Setenv("PROFILE", "lab")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.Streams.Profile != "lab" {
		t.Fatalf("profile = %q, want lab", cfg.Streams.Profile)
	}
}

func TestFinalSweepSecondsOverride(t *testing.T) {
	t.Setenv("FINAL_SWEEP_SECONDS", "7")
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.Sweep.MaxPasses != 7 {
		t.Fatalf("sweep.max_passes = %d, want 7", cfg.Sweep.MaxPasses)
	}

	t.Setenv("FINAL_SWEEP_SECONDS", "not-a-number")
	cfg = Default()
	if err := cfg.normalize(); err != nil {
		t.Fatal(err)
	}
	if cfg.Sweep.MaxPasses != defaultSweepMaxPasses {
		t.Fatalf("invalid override should keep default, got %d", cfg.Sweep.MaxPasses)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero streams", func(c *Config) { c.Streams.Count = 0 }},
		{"zero samples", func(c *Config) { c.Stability.MaxSamples = 0 }},
		{"zero passes", func(c *Config) { c.Sweep.MaxPasses = 0 }},
		{"no producer patterns", func(c *Config) { c.Termination.ProducerPatterns = nil }},
		{"negative drain", func(c *Config) { c.Termination.MoverDrainSeconds = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory in test environment")
	}
	got, err := ExpandPath("~/logs")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "logs") {
		t.Fatalf("expand = %q", got)
	}

	got, err = ExpandPath("/abs/path")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/abs/path" {
		t.Fatalf("absolute path changed: %q", got)
	}
}
