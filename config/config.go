// Package config loads and validates the engine configuration from an
// optional file, environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"recap/hotkey"
)

// Config is the validated snapshot handed to the rest of the program.
// It is read once at startup and again only on an explicit reload;
// changes apply on the next capture start.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	TranscribeURL string `mapstructure:"transcribe_url"`
	TranscribeKey string `mapstructure:"transcribe_key"`
	ReasonURL     string `mapstructure:"reason_url"`
	ReasonKey     string `mapstructure:"reason_key"`
	Model         string `mapstructure:"model"`
	Language      string `mapstructure:"language"`

	DefaultMode       string `mapstructure:"default_mode"`
	SendAudioDirectly bool   `mapstructure:"send_audio_directly"`
	InstructionPrompt string `mapstructure:"instruction_prompt"`

	SegmentDurationMs int    `mapstructure:"segment_duration_ms"`
	BufferMaxS        int    `mapstructure:"buffer_max_s"`
	WindowMinutes     int    `mapstructure:"window_minutes"`
	Format            string `mapstructure:"format"`
	SystemAudio       bool   `mapstructure:"system_audio"`
	Hotkey            string `mapstructure:"hotkey"`

	LogLevel string `mapstructure:"loglevel"`
}

func (c *Config) SegmentDuration() time.Duration {
	return time.Duration(c.SegmentDurationMs) * time.Millisecond
}

func (c *Config) BufferMax() time.Duration {
	return time.Duration(c.BufferMaxS) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enabled", true)
	v.SetDefault("transcribe_url", "")
	v.SetDefault("transcribe_key", "")
	v.SetDefault("reason_url", "")
	v.SetDefault("reason_key", "")
	v.SetDefault("model", "")
	v.SetDefault("language", "")
	v.SetDefault("default_mode", "continuous")
	v.SetDefault("send_audio_directly", false)
	v.SetDefault("instruction_prompt", "")
	v.SetDefault("segment_duration_ms", 10000)
	v.SetDefault("buffer_max_s", 300)
	v.SetDefault("window_minutes", 1)
	v.SetDefault("format", "wav")
	v.SetDefault("system_audio", true)
	v.SetDefault("hotkey", "ctrl+shift+space")
	v.SetDefault("loglevel", "info")
}

// DefaultPath returns the conventional config file location; the file
// does not have to exist.
func DefaultPath() string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "recap.yaml"
		}
		xdgConfig = filepath.Join(home, ".config")
	}
	return filepath.Join(xdgConfig, "recap", "recap.yaml")
}

// Load reads the config file at path, falling back to defaults when it
// is absent. Environment variables with a RECAP_ prefix override file
// values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RECAP")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine; defaults and env carry the config.
			_, notFound := err.(viper.ConfigFileNotFoundError)
			if !notFound && !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate clamps soft limits and rejects hard ones.
func (c *Config) validate() error {
	if c.SegmentDurationMs < 5000 {
		c.SegmentDurationMs = 5000
	}
	if c.SegmentDurationMs > 30000 {
		c.SegmentDurationMs = 30000
	}
	if c.BufferMaxS <= 0 {
		c.BufferMaxS = 300
	}

	switch c.WindowMinutes {
	case 1, 3, 5:
	default:
		return fmt.Errorf("window_minutes must be 1, 3 or 5, got %d", c.WindowMinutes)
	}

	switch c.DefaultMode {
	case "continuous", "push-to-talk":
	default:
		return fmt.Errorf("default_mode must be continuous or push-to-talk, got %q", c.DefaultMode)
	}

	switch c.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("format must be wav or flac, got %q", c.Format)
	}

	if _, err := hotkey.ParseCombo(c.Hotkey); err != nil {
		return err
	}

	return nil
}
