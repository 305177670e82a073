package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStreams()
	c.normalizeSweep()
	c.normalizeLogging()
	return c.normalizeJournal()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir
	}
	if c.Paths.RuntimeDir, err = ExpandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ProfileDir) == "" {
		c.Paths.ProfileDir = defaultProfileDir
	}
	if c.Paths.ProfileDir, err = ExpandPath(c.Paths.ProfileDir); err != nil {
		return fmt.Errorf("paths.profile_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// normalizeStreams applies the PROFILE environment override and fallback
// output locations.
func (c *Config) normalizeStreams() {
	if value, ok := os.LookupEnv("PROFILE"); ok && strings.TrimSpace(value) != "" {
		c.Streams.Profile = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Streams.Profile) == "" {
		c.Streams.Profile = defaultProfile
	}
	if strings.TrimSpace(c.Streams.DefaultTempDir) == "" {
		c.Streams.DefaultTempDir = defaultTempOutputDir
	}
	if strings.TrimSpace(c.Streams.DefaultFinalDir) == "" {
		c.Streams.DefaultFinalDir = defaultFinalOutputDir
	}
}

// normalizeSweep applies the FINAL_SWEEP_SECONDS environment override for the
// pass bound.
func (c *Config) normalizeSweep() {
	if value, ok := os.LookupEnv("FINAL_SWEEP_SECONDS"); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && parsed > 0 {
			c.Sweep.MaxPasses = parsed
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeJournal() error {
	if strings.TrimSpace(c.Journal.Path) == "" {
		c.Journal.Path = defaultJournalPath
	}
	var err error
	if c.Journal.Path, err = ExpandPath(c.Journal.Path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}
