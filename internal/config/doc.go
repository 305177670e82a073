// Package config loads, normalizes, and validates streamhalt's TOML
// configuration. Per-stream output locations come from env files resolved at
// run time (see internal/streamenv); this package only carries the defaults
// and the knobs for stability probing, sweep bounds, and service termination.
package config
