package config

import (
	"fmt"

	"streamhalt/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStreams(); err != nil {
		return err
	}
	if err := c.validateStability(); err != nil {
		return err
	}
	if err := c.validateSweep(); err != nil {
		return err
	}
	if err := c.validateTermination(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStreams() error {
	if c.Streams.Count <= 0 {
		return invalid("streams.count must be positive")
	}
	return nil
}

func (c *Config) validateStability() error {
	return ensurePositiveMap(map[string]int{
		"stability.sample_interval_seconds": c.Stability.SampleIntervalSeconds,
		"stability.max_samples":             c.Stability.MaxSamples,
		"stability.required_stable_samples": c.Stability.RequiredStableSamples,
	})
}

func (c *Config) validateSweep() error {
	return ensurePositiveMap(map[string]int{
		"sweep.max_passes":            c.Sweep.MaxPasses,
		"sweep.pass_interval_seconds": c.Sweep.PassIntervalSeconds,
	})
}

func (c *Config) validateTermination() error {
	if len(c.Termination.ProducerPatterns) == 0 {
		return invalid("termination.producer_patterns must list at least one pattern")
	}
	if len(c.Termination.MoverPatterns) == 0 {
		return invalid("termination.mover_patterns must list at least one pattern")
	}
	if len(c.Termination.RelayPatterns) == 0 {
		return invalid("termination.relay_patterns must list at least one pattern")
	}
	if err := ensurePositiveMap(map[string]int{
		"termination.producer_grace_seconds": c.Termination.ProducerGraceSeconds,
		"termination.mover_grace_seconds":    c.Termination.MoverGraceSeconds,
		"termination.relay_check_seconds":    c.Termination.RelayCheckSeconds,
	}); err != nil {
		return err
	}
	if c.Termination.MoverDrainSeconds < 0 {
		return invalid("termination.mover_drain_seconds must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return invalid(fmt.Sprintf("%s must be positive", key))
		}
	}
	return nil
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "config", "validate", message, nil)
}
