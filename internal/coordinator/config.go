package coordinator

import (
	"time"

	"github.com/surgehq/surge/internal/metrics"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
)

type Config struct {
	HTTP             http.Config
	ProgressInterval time.Duration
	Metrics          *metrics.Metrics
}

func NewDefaultConfig() *Config {
	return &Config{
		HTTP:             http.DefaultConfig(),
		ProgressInterval: loadtest.DefaultProgressInterval,
	}
}

type ConfigOption func(*Config)

func HTTPConfig(h http.Config) ConfigOption {
	return func(c *Config) {
		c.HTTP = h
	}
}

func ProgressInterval(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.ProgressInterval = d
	}
}

func WithMetrics(m *metrics.Metrics) ConfigOption {
	return func(c *Config) {
		c.Metrics = m
	}
}
