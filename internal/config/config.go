// Package config loads taskflow command configuration from defaults, an optional YAML
// file, TASKFLOW_* environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TASKFLOW_CACHE_BACKEND.
const EnvPrefix = "TASKFLOW"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Emitter string        `mapstructure:"emitter"` // none, text, json, zap
	Retry   RetryConfig   `mapstructure:"retry"`
	Timeout time.Duration `mapstructure:"timeout"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Trace   TraceConfig   `mapstructure:"trace"`
}

type LogConfig struct {
	Format string `mapstructure:"format"` // json, text
	Level  string `mapstructure:"level"`
}

type RetryConfig struct {
	Count    int           `mapstructure:"count"`
	Delay    time.Duration `mapstructure:"delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"` // enables exponential backoff when > 0
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // none, memory, sqlite, mysql
	Path    string        `mapstructure:"path"`    // sqlite file
	DSN     string        `mapstructure:"dsn"`     // mysql
	TTL     time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	// Addr serves /metrics while the command runs. Empty disables it.
	Addr string `mapstructure:"addr"`
}

type TraceConfig struct {
	Exporter    string  `mapstructure:"exporter"` // none, stdout, otlp
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Log:     LogConfig{Format: "text", Level: "info"},
		Emitter: "none",
		Retry:   RetryConfig{Count: 0, Delay: 100 * time.Millisecond},
		Timeout: 0,
		Cache:   CacheConfig{Backend: "none", Path: "taskflow-cache.db", TTL: time.Hour},
		Trace:   TraceConfig{Exporter: "none", Endpoint: "localhost:4317", ServiceName: "taskflow", SampleRate: 1},
	}
}

// SetDefaults registers Defaults on v, so every key is known to Unmarshal and the
// environment binding.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("emitter", d.Emitter)
	v.SetDefault("retry.count", d.Retry.Count)
	v.SetDefault("retry.delay", d.Retry.Delay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.dsn", d.Cache.DSN)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("trace.exporter", d.Trace.Exporter)
	v.SetDefault("trace.endpoint", d.Trace.Endpoint)
	v.SetDefault("trace.service_name", d.Trace.ServiceName)
	v.SetDefault("trace.sample_rate", d.Trace.SampleRate)
}

// Load reads the configuration into a Config. file may be empty. Flags must already be
// bound to v.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.Emitter {
	case "none", "text", "json", "zap":
	default:
		errs = append(errs, fmt.Errorf("emitter: unknown kind %q", c.Emitter))
	}
	if c.Retry.Count < 0 {
		errs = append(errs, fmt.Errorf("retry.count: must not be negative, got %d", c.Retry.Count))
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		errs = append(errs, errors.New("retry: delays must not be negative"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout: must not be negative, got %v", c.Timeout))
	}

	switch c.Cache.Backend {
	case "none", "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, errors.New("cache.path: required for the sqlite backend"))
		}
	case "mysql":
		if c.Cache.DSN == "" {
			errs = append(errs, errors.New("cache.dsn: required for the mysql backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}

	switch c.Trace.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("trace.exporter: unknown exporter %q", c.Trace.Exporter))
	}

	return errors.Join(errs...)
}
