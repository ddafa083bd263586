package loadtest

import (
	"time"

	"github.com/surgehq/surge/pkg/http"
)

const (
	DefaultWindow           = time.Second
	DefaultProgressInterval = time.Second
)

// Config holds the options of a dispatcher and of Execute
type Config struct {
	Pacing Pacing      `toml:"pacing" json:"pacing" mapstructure:"pacing"`
	HTTP   http.Config `toml:"http" json:"http" mapstructure:"http"`

	// Window is the length of one batch under batched pacing
	Window time.Duration `toml:"window" json:"window" mapstructure:"window"`

	ProgressInterval time.Duration `toml:"progress_interval" json:"progress_interval" mapstructure:"progress_interval"`
	ProgressFunc     ProgressFunc  `toml:"-" json:"-" mapstructure:"-"`
}

func NewDefaultConfig() *Config {
	return &Config{
		Pacing:           DefaultPacing,
		HTTP:             http.DefaultConfig(),
		Window:           DefaultWindow,
		ProgressInterval: DefaultProgressInterval,
	}
}

type ConfigOption func(*Config)

func WithPacing(p Pacing) ConfigOption {
	return func(c *Config) {
		c.Pacing = p
	}
}

func HTTPConfig(h http.Config) ConfigOption {
	return func(c *Config) {
		c.HTTP = h
	}
}

func RequestTimeout(n time.Duration) ConfigOption {
	return func(c *Config) {
		c.HTTP.Timeout = n
	}
}

func WindowSize(n time.Duration) ConfigOption {
	return func(c *Config) {
		c.Window = n
	}
}

func ProgressInterval(n time.Duration) ConfigOption {
	return func(c *Config) {
		c.ProgressInterval = n
	}
}

// OnProgress registers f to receive a snapshot every ProgressInterval while Execute runs
func OnProgress(f ProgressFunc) ConfigOption {
	return func(c *Config) {
		c.ProgressFunc = f
	}
}
