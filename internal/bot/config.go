package bot

import (
	"errors"
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/encoderbot/core/config"
	coredatabase "github.com/m3rciful/encoderbot/core/database"
	"github.com/m3rciful/encoderbot/internal/audioselect"
)

// AudioSelectConfig tunes reorder sessions.
type AudioSelectConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" envconfig:"AUDIOSEL_TIMEOUT_SECONDS"`
	// RefreshSeconds re-renders the countdown of open sessions; 0 disables it.
	RefreshSeconds int `yaml:"refresh_seconds" envconfig:"AUDIOSEL_REFRESH_SECONDS"`
}

// Timeout returns the session timeout.
func (c AudioSelectConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Refresh returns the countdown refresh interval.
func (c AudioSelectConfig) Refresh() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the full bot configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database    coredatabase.Config `yaml:"database"`
	AudioSelect AudioSelectConfig   `yaml:"audio_select"`
	Metrics     MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	switch {
	case c.AudioSelect.TimeoutSeconds < 0:
		return errors.New("audio_select.timeout_seconds must be >= 0")
	case c.AudioSelect.TimeoutSeconds == 0:
		c.AudioSelect.TimeoutSeconds = int(audioselect.DefaultTimeout / time.Second)
	}
	if c.AudioSelect.RefreshSeconds < 0 {
		return errors.New("audio_select.refresh_seconds must be >= 0")
	}
	if c.AudioSelect.RefreshSeconds >= c.AudioSelect.TimeoutSeconds && c.AudioSelect.RefreshSeconds > 0 {
		return fmt.Errorf("audio_select.refresh_seconds (%d) must be below timeout_seconds (%d)",
			c.AudioSelect.RefreshSeconds, c.AudioSelect.TimeoutSeconds)
	}
	if c.Database.Enabled() && c.Database.Name == "" {
		return errors.New("database.name is required when database.host is set")
	}
	if c.Database.Enabled() && c.Database.Port == "" {
		c.Database.Port = "5432"
	}
	return nil
}
