package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"streamhalt/internal/services"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// RuntimeDir holds the per-stream env files and the ephemeral .env
	// artifacts cleaned up at the end of a shutdown run.
	RuntimeDir string `toml:"runtime_dir"`
	ProfileDir string `toml:"profile_dir"`
	LogDir     string `toml:"log_dir"`
}

// Streams describes the recording streams managed by the shutdown sequence.
type Streams struct {
	Count   int    `toml:"count"`
	Profile string `toml:"profile"`
	// Fallback output locations used when a stream's env file is missing
	// or does not define the corresponding key.
	DefaultTempDir  string `toml:"default_temp_dir"`
	DefaultFinalDir string `toml:"default_final_dir"`
}

// Stability tunes the file stabilization detector.
type Stability struct {
	SampleIntervalSeconds int `toml:"sample_interval_seconds"`
	MaxSamples            int `toml:"max_samples"`
	RequiredStableSamples int `toml:"required_stable_samples"`
}

// Sweep tunes the relocation sweep run at shutdown time.
type Sweep struct {
	MaxPasses           int `toml:"max_passes"`
	PassIntervalSeconds int `toml:"pass_interval_seconds"`
}

// Termination identifies the external services stopped by the sequencer and
// the grace allotted to each before escalation.
type Termination struct {
	ProducerPatterns     []string `toml:"producer_patterns"`
	ProducerGraceSeconds int      `toml:"producer_grace_seconds"`
	MoverPatterns        []string `toml:"mover_patterns"`
	MoverGraceSeconds    int      `toml:"mover_grace_seconds"`
	MoverDrainSeconds    int      `toml:"mover_drain_seconds"`
	RelayPatterns        []string `toml:"relay_patterns"`
	RelayCheckSeconds    int      `toml:"relay_check_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Journal contains configuration for the shutdown run journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for streamhalt.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Streams     Streams     `toml:"streams"`
	Stability   Stability   `toml:"stability"`
	Sweep       Sweep       `toml:"sweep"`
	Termination Termination `toml:"termination"`
	Journal     Journal     `toml:"journal"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/streamhalt/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and environment overrides applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "open", resolvedPath, err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, services.Wrap(services.ErrConfiguration, "config", "parse", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("streamhalt.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for operation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves a leading ~ against the current user's home directory.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}
