// Package config provides configuration loading and validation for the
// perception-voice daemon. It handles YAML-based configuration with
// per-section struct validation and duration accessors.
package config
