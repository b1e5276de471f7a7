package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bugmaschine/epfetch/pkg/dirs"
	"github.com/bugmaschine/epfetch/pkg/httpx"
)

var envPrefix = "EPFETCH__"

// Config is the fully resolved configuration, built in one step by New.
type Config struct {
	Concurrency   int               `mapstructure:"concurrency"`
	OutputDir     string            `mapstructure:"outputDir"`
	Referrer      string            `mapstructure:"referrer"`
	UserAgent     string            `mapstructure:"userAgent"`
	Headers       map[string]string `mapstructure:"headers"`
	LimitRate     string            `mapstructure:"limitRate"`
	ProbeTimeout  time.Duration     `mapstructure:"probeTimeout"`
	ProbeRetries  int               `mapstructure:"probeRetries"`
	Overwrite     bool              `mapstructure:"overwrite"`
	Debug         bool              `mapstructure:"debug"`
	LogPath       string            `mapstructure:"logPath"`
	LogMaxSize    int               `mapstructure:"logMaxSize"`
	LogMaxBackups int               `mapstructure:"logMaxBackups"`
	MetricsAddr   string            `mapstructure:"metricsAddr"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"concurrent":    "concurrency",
	"output-folder": "outputDir",
	"referrer":      "referrer",
	"user-agent":    "userAgent",
	"rate":          "limitRate",
	"probe-timeout": "probeTimeout",
	"probe-retries": "probeRetries",
	"overwrite":     "overwrite",
	"debug":         "debug",
	"log":           "logPath",
	"metrics-addr":  "metricsAddr",
}

// New resolves defaults, the config file, EPFETCH__* environment variables
// and flags, in increasing order of precedence. configPath may be empty to
// search ./config.toml and the user config directory.
func New(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	defaults(v)

	if err := load(v, configPath); err != nil {
		return nil, err
	}
	loadFromEnv(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(v *viper.Viper) {
	v.SetDefault("concurrency", 5)
	v.SetDefault("outputDir", "downloads")
	v.SetDefault("referrer", "")
	v.SetDefault("userAgent", httpx.DefaultUserAgent)
	v.SetDefault("headers", map[string]string{})
	v.SetDefault("limitRate", "inf")
	v.SetDefault("probeTimeout", 10*time.Second)
	v.SetDefault("probeRetries", 0)
	v.SetDefault("overwrite", false)
	v.SetDefault("debug", false)
	v.SetDefault("logPath", "")
	v.SetDefault("logMaxSize", 50)
	v.SetDefault("logMaxBackups", 3)
	v.SetDefault("metricsAddr", "")
}

func load(v *viper.Viper, configPath string) error {
	v.SetConfigType("toml")

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if dir, err := dirs.ConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

func loadFromEnv(v *viper.Viper) {
	// Only explicitly listed variables are read.
	v.BindEnv("concurrency", envPrefix+"CONCURRENCY")
	v.BindEnv("outputDir", envPrefix+"OUTPUT_DIR")
	v.BindEnv("referrer", envPrefix+"REFERRER")
	v.BindEnv("userAgent", envPrefix+"USER_AGENT")
	v.BindEnv("limitRate", envPrefix+"LIMIT_RATE")
	v.BindEnv("probeTimeout", envPrefix+"PROBE_TIMEOUT")
	v.BindEnv("probeRetries", envPrefix+"PROBE_RETRIES")
	v.BindEnv("overwrite", envPrefix+"OVERWRITE")
	v.BindEnv("debug", envPrefix+"DEBUG")
	v.BindEnv("logPath", envPrefix+"LOG_PATH")
	v.BindEnv("logMaxSize", envPrefix+"LOG_MAX_SIZE")
	v.BindEnv("logMaxBackups", envPrefix+"LOG_MAX_BACKUPS")
	v.BindEnv("metricsAddr", envPrefix+"METRICS_ADDR")
}

// Validate checks the configuration once, before any work is planned.
func (c *Config) Validate() error {
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.ProbeRetries < 0 {
		return fmt.Errorf("probe retries must not be negative, got %d", c.ProbeRetries)
	}
	if _, err := c.RateLimit(); err != nil {
		return err
	}
	return nil
}

// RequestHeaders builds the headers attached to every outgoing request.
func (c *Config) RequestHeaders() httpx.Headers {
	return httpx.Headers{
		Referrer:  c.Referrer,
		UserAgent: c.UserAgent,
		Extra:     c.Headers,
	}
}

// SaveDirectory resolves OutputDir against the working directory.
func (c *Config) SaveDirectory() (string, error) {
	return dirs.GetSaveDirectory(filepath.Clean(c.OutputDir))
}
