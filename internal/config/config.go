// Package config loads process configuration from defaults, an optional
// YAML file and PAYORCH_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAYORCH_PAYMENT_BASE_URL.
const EnvPrefix = "PAYORCH"

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Payment  ServiceConfig  `mapstructure:"payment"`
	Mail     ServiceConfig  `mapstructure:"mail"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Blocking BlockingConfig `mapstructure:"blocking"`
	Loop     LoopConfig     `mapstructure:"loop"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the inbound HTTP server.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"` // 0 = none
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// ServiceConfig addresses one downstream service.
type ServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"` // per call, 0 = none
}

// NotifyConfig configures the notification stage.
type NotifyConfig struct {
	Address string `mapstructure:"address"`
}

// BlockingConfig sizes the blocking driver.
type BlockingConfig struct {
	Workers int `mapstructure:"workers"`
	Backlog int `mapstructure:"backlog"` // < 0 = unbounded
}

// LoopConfig sizes the non-blocking driver.
type LoopConfig struct {
	Workers int `mapstructure:"workers"`
	Queue   int `mapstructure:"queue"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 3 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Payment:  ServiceConfig{BaseURL: "http://localhost:8082"},
		Mail:     ServiceConfig{BaseURL: "http://localhost:8081"},
		Notify:   NotifyConfig{Address: "abcd@abc.def"},
		Blocking: BlockingConfig{Workers: 10, Backlog: 100},
		Loop:     LoopConfig{Workers: 4, Queue: 1024},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("payment.base_url", d.Payment.BaseURL)
	v.SetDefault("payment.timeout", d.Payment.Timeout)
	v.SetDefault("mail.base_url", d.Mail.BaseURL)
	v.SetDefault("mail.timeout", d.Mail.Timeout)
	v.SetDefault("notify.address", d.Notify.Address)
	v.SetDefault("blocking.workers", d.Blocking.Workers)
	v.SetDefault("blocking.backlog", d.Blocking.Backlog)
	v.SetDefault("loop.workers", d.Loop.Workers)
	v.SetDefault("loop.queue", d.Loop.Queue)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error

	for name, s := range map[string]ServiceConfig{"payment": c.Payment, "mail": c.Mail} {
		if s.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base_url is required", name))
		} else if u, err := url.Parse(s.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s.base_url %q is not an absolute URL", name, s.BaseURL))
		}
		if s.Timeout < 0 {
			errs = append(errs, fmt.Errorf("%s.timeout must not be negative", name))
		}
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RequestTimeout < 0 || c.Server.ReadHeaderTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if c.Notify.Address == "" {
		errs = append(errs, errors.New("notify.address is required"))
	}
	if c.Blocking.Workers <= 0 {
		errs = append(errs, errors.New("blocking.workers must be positive"))
	}
	if c.Loop.Workers <= 0 {
		errs = append(errs, errors.New("loop.workers must be positive"))
	}
	if c.Loop.Queue < 0 {
		errs = append(errs, errors.New("loop.queue must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}
