package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultMaxMessageBytes is the maximum IPC payload size when none is configured.
const DefaultMaxMessageBytes = 1024 * 1024 // 1 MiB

// Config represents the complete daemon configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	HTTP          HTTPConfig          `yaml:"http"`
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains the unix socket server and store configuration
type ServerConfig struct {
	SocketPath       string   `yaml:"socket_path"`
	RetentionMinutes int      `yaml:"retention_minutes"`
	DiscardPhrases   []string `yaml:"discard_phrases"`
	MaxMessageBytes  int      `yaml:"max_message_bytes"`
}

// HTTPConfig contains the optional HTTP status/metrics server configuration
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// AudioConfig contains capture and segmentation parameters
type AudioConfig struct {
	SampleRate                int     `yaml:"sample_rate"`
	ChunkSize                 int     `yaml:"chunk_size"` // samples per capture chunk
	MicDevice                 int     `yaml:"mic_device"` // -1 = auto-detect
	MinUtteranceDuration      float64 `yaml:"min_utterance_duration"`       // seconds
	PostSpeechSilenceDuration float64 `yaml:"post_speech_silence_duration"` // seconds
	PreRollDuration           float64 `yaml:"pre_roll_duration"`            // seconds
}

// VADConfig contains the two-stage voice activity detection configuration
type VADConfig struct {
	EnergyThreshold float32 `yaml:"energy_threshold"` // coarse stage, normalized RMS
	SileroModelPath string  `yaml:"silero_model_path"`
	SileroThreshold float32 `yaml:"silero_threshold"` // confirm stage speech probability
}

// TranscriptionConfig contains transcription engine configuration
type TranscriptionConfig struct {
	Endpoint      string `yaml:"endpoint"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Language      string `yaml:"language"`
	BeamSize      int    `yaml:"beam_size"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in optional fields that may be omitted from the file
func (c *Config) applyDefaults() {
	if c.Server.MaxMessageBytes == 0 {
		c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.Audio.MinUtteranceDuration == 0 {
		c.Audio.MinUtteranceDuration = 1.1
	}
	if c.Audio.PostSpeechSilenceDuration == 0 {
		c.Audio.PostSpeechSilenceDuration = 0.6
	}
	if c.Audio.PreRollDuration == 0 {
		c.Audio.PreRollDuration = 1.0
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	if s.SocketPath == "" {
		return fmt.Errorf("socket_path cannot be empty")
	}

	if s.RetentionMinutes < 1 {
		return fmt.Errorf("retention_minutes must be at least 1, got %d", s.RetentionMinutes)
	}

	if s.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be at least 1024, got %d", s.MaxMessageBytes)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.SampleRate != 8000 && a.SampleRate != 16000 {
		return fmt.Errorf("sample_rate must be 8000 or 16000 Hz, got %d", a.SampleRate)
	}

	if a.ChunkSize < 160 || a.ChunkSize > 8192 {
		return fmt.Errorf("chunk_size must be between 160 and 8192 samples, got %d", a.ChunkSize)
	}

	if a.MicDevice < -1 {
		return fmt.Errorf("mic_device must be -1 (auto) or a device index, got %d", a.MicDevice)
	}

	if a.MinUtteranceDuration <= 0 {
		return fmt.Errorf("min_utterance_duration must be positive, got %f", a.MinUtteranceDuration)
	}

	if a.PostSpeechSilenceDuration <= 0 {
		return fmt.Errorf("post_speech_silence_duration must be positive, got %f", a.PostSpeechSilenceDuration)
	}

	if a.PreRollDuration <= 0 {
		return fmt.Errorf("pre_roll_duration must be positive, got %f", a.PreRollDuration)
	}

	return nil
}

// Validate validates VAD configuration
func (v *VADConfig) Validate() error {
	if v.EnergyThreshold < 0 || v.EnergyThreshold > 1 {
		return fmt.Errorf("energy_threshold must be between 0 and 1, got %f", v.EnergyThreshold)
	}

	if v.SileroModelPath == "" {
		return fmt.Errorf("silero_model_path cannot be empty")
	}

	if v.SileroThreshold < 0 || v.SileroThreshold > 1 {
		return fmt.Errorf("silero_threshold must be between 0 and 1, got %f", v.SileroThreshold)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.BeamSize < 1 {
		return fmt.Errorf("beam_size must be at least 1, got %d", t.BeamSize)
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetRetentionDuration returns the store retention period as a time.Duration
func (s *ServerConfig) GetRetentionDuration() time.Duration {
	return time.Duration(s.RetentionMinutes) * time.Minute
}

// GetMinUtteranceDuration returns the minimum utterance duration as a time.Duration
func (a *AudioConfig) GetMinUtteranceDuration() time.Duration {
	return time.Duration(a.MinUtteranceDuration * float64(time.Second))
}

// GetPostSpeechSilenceDuration returns the trailing silence window as a time.Duration
func (a *AudioConfig) GetPostSpeechSilenceDuration() time.Duration {
	return time.Duration(a.PostSpeechSilenceDuration * float64(time.Second))
}

// GetPreRollDuration returns the pre-roll history length as a time.Duration
func (a *AudioConfig) GetPreRollDuration() time.Duration {
	return time.Duration(a.PreRollDuration * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}
