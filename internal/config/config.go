// Package config loads settings for the PulseRate binaries from an optional
// YAML file and PULSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

type ServerConfig struct {
	Port    int    `mapstructure:"port"`
	Origins string `mapstructure:"origins"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// MonitorConfig describes the acquisition stream. The window is given in
// seconds and converted to samples at SampleRate.
type MonitorConfig struct {
	SampleRate      int           `mapstructure:"sample_rate"`
	WindowSeconds   float64       `mapstructure:"window_seconds"`
	SmoothingWindow int           `mapstructure:"smoothing_window"`
	ComputeInterval time.Duration `mapstructure:"compute_interval"`
	Channel         int           `mapstructure:"channel"`
}

type NATSConfig struct {
	URL            string `mapstructure:"url"`
	SamplesSubject string `mapstructure:"samples_subject"`
	RateSubject    string `mapstructure:"rate_subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.origins", "*")
	v.SetDefault("storage.db_path", "pulserate.sqlite3")
	v.SetDefault("monitor.sample_rate", 50)
	v.SetDefault("monitor.window_seconds", 3.0)
	v.SetDefault("monitor.smoothing_window", 5)
	v.SetDefault("monitor.compute_interval", "2s")
	v.SetDefault("monitor.channel", 0)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.samples_subject", "ppg.samples")
	v.SetDefault("nats.rate_subject", "ppg.rate")
}

// Load reads configuration. path names an explicit config file; when empty,
// pulserate.yaml is looked up in the working directory, ./config and
// /etc/pulserate, and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pulserate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pulserate")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Monitor.SampleRate <= 0 {
		return fmt.Errorf("monitor.sample_rate must be positive, got %d", c.Monitor.SampleRate)
	}
	if c.Monitor.WindowSeconds <= 0 {
		return fmt.Errorf("monitor.window_seconds must be positive, got %g", c.Monitor.WindowSeconds)
	}
	if c.Monitor.SmoothingWindow <= 0 {
		return fmt.Errorf("monitor.smoothing_window must be positive, got %d", c.Monitor.SmoothingWindow)
	}
	if c.Monitor.ComputeInterval <= 0 {
		return fmt.Errorf("monitor.compute_interval must be positive, got %s", c.Monitor.ComputeInterval)
	}
	return nil
}

// OriginList splits the comma separated CORS origin list.
func (s ServerConfig) OriginList() []string {
	if s.Origins == "" || s.Origins == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s.Origins, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
