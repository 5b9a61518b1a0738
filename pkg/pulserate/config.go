package pulserate

import "time"

type Config struct {
	DBPath          string
	SampleRate      int
	WindowSize      int
	SmoothingWindow int
	ComputeInterval time.Duration
	Logger          Logger
	Storage         Storage
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithWindowSize(size int) Option {
	return func(c *Config) {
		c.WindowSize = size
	}
}

func WithSmoothingWindow(size int) Option {
	return func(c *Config) {
		c.SmoothingWindow = size
	}
}

// WithComputeInterval sets how much signal time passes between estimates
// when replaying a recording.
func WithComputeInterval(d time.Duration) Option {
	return func(c *Config) {
		c.ComputeInterval = d
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// defaultConfig is a 3 second window at 50 Hz, estimated every 2 seconds.
func defaultConfig() *Config {
	return &Config{
		DBPath:          "pulserate.sqlite3",
		SampleRate:      50,
		WindowSize:      150,
		SmoothingWindow: 5,
		ComputeInterval: 2 * time.Second,
		Logger:          nil,
	}
}
