package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/surgehq/surge/internal/client"
	"github.com/surgehq/surge/internal/store"
	"github.com/surgehq/surge/internal/worker"
	"github.com/surgehq/surge/pkg/http"
	"github.com/surgehq/surge/pkg/loadtest"
)

const (
	EnvPrefix = "SURGE"
	// FileName is looked up in the home directory when no config file is given
	FileName = ".surge"

	DefaultAddr = "127.0.0.1:8080"
)

type Server struct {
	// Addr is the listen address of surge serve
	Addr string `mapstructure:"addr"`
	// URL is where the cli commands reach the service
	URL string `mapstructure:"url"`
}

type Store struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Worker struct {
	Isolation string `mapstructure:"isolation"`
	// Executable overrides the binary spawned for process isolation. Empty means the running binary
	Executable       string        `mapstructure:"executable"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	StopGrace        time.Duration `mapstructure:"stop_grace"`
}

// Config is the resolved configuration of the binary, merged from defaults, the config file, SURGE_ env
// vars and flags
type Config struct {
	Server  Server      `mapstructure:"server"`
	Store   Store       `mapstructure:"store"`
	Worker  Worker      `mapstructure:"worker"`
	HTTP    http.Config `mapstructure:"http"`
	Verbose string      `mapstructure:"verbose"`
	Output  string      `mapstructure:"output"`
}

// SetDefaults registers every known key on v so env vars resolve even without a config file
func SetDefaults(v *viper.Viper) {
	h := http.DefaultConfig()
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("server.url", client.DefaultURL)
	v.SetDefault("store.driver", string(store.DriverSQLite))
	v.SetDefault("store.dsn", store.DefaultDSN)
	v.SetDefault("worker.isolation", string(worker.IsolationProcess))
	v.SetDefault("worker.executable", "")
	v.SetDefault("worker.progress_interval", loadtest.DefaultProgressInterval)
	v.SetDefault("worker.stop_grace", worker.DefaultStopGrace)
	v.SetDefault("http.timeout", h.Timeout)
	v.SetDefault("http.max_conns_per_host", h.MaxConnsPerHost)
	v.SetDefault("http.insecure_skip_verify", h.InsecureSkipVerify)
	v.SetDefault("http.user_agent", h.UserAgent)
	v.SetDefault("verbose", "info")
	v.SetDefault("output", "pretty")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile reads cfgFile, or $HOME/.surge.yaml when it is empty. A missing default file is not an error
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v.ReadInConfig()
	}
	home, err := homedir.Dir()
	if err != nil {
		return err
	}
	v.AddConfigPath(home)
	v.SetConfigName(FileName)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Load resolves the configuration and validates it, reporting every invalid key
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var merr *multierror.Error
	if c.Server.Addr == "" {
		merr = multierror.Append(merr, fmt.Errorf("server.addr is required"))
	}
	if _, err := store.ParseDriver(c.Store.Driver); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("store.driver: %w", err))
	}
	if _, err := worker.ParseIsolation(c.Worker.Isolation); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("worker.isolation: %w", err))
	}
	if c.Worker.ProgressInterval <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("worker.progress_interval must be positive"))
	}
	if c.Worker.StopGrace < 0 {
		merr = multierror.Append(merr, fmt.Errorf("worker.stop_grace must not be negative"))
	}
	if c.HTTP.Timeout <= 0 || c.HTTP.Timeout > loadtest.MaxTimeout {
		merr = multierror.Append(merr, fmt.Errorf("http.timeout must be in (0, %s]", loadtest.MaxTimeout))
	}
	if c.HTTP.MaxConnsPerHost <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("http.max_conns_per_host must be positive"))
	}
	return merr.ErrorOrNil()
}

// Isolation is the parsed worker isolation. Validate has already rejected unknown values
func (c *Config) Isolation() worker.Isolation {
	i, _ := worker.ParseIsolation(c.Worker.Isolation)
	return i
}
