package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vending/vending-gui/internal/domain/model"
)

// EnvPrefix is prepended to every environment override: machine.type is
// read from VENDING_MACHINE_TYPE.
const EnvPrefix = "VENDING"

const (
	TransportSSE       = "sse"
	TransportWebsocket = "ws"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Machine    MachineConfig    `mapstructure:"machine"`
	Controller ControllerConfig `mapstructure:"controller"`
	Log        LogConfig        `mapstructure:"log"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Tracing    TracingConfig    `mapstructure:"tracing"`

	v *viper.Viper
}

type MachineConfig struct {
	Type       string `mapstructure:"type"`
	InstanceID int    `mapstructure:"instance_id"`
}

type ControllerConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	StreamTransport string        `mapstructure:"stream_transport"`
	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
	CommandRate     float64       `mapstructure:"command_rate"`
	CommandBurst    int           `mapstructure:"command_burst"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Flags declares every key with its default. Values set on the returned
// set (from the command line) take precedence over env and file.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vending-gui", pflag.ContinueOnError)

	fs.String("machine.type", "", "vending machine type")
	fs.Int("machine.instance_id", 0, "vending machine instance id")

	fs.String("controller.base_url", "http://localhost:8080", "controller base url")
	fs.Duration("controller.timeout", 10*time.Second, "timeout for status and command calls")
	fs.String("controller.stream_transport", TransportSSE, "event stream transport (sse|ws)")
	fs.Duration("controller.reconnect_delay", 3*time.Second, "delay before the event stream reconnects")
	fs.Float64("controller.command_rate", 5, "commands per second")
	fs.Int("controller.command_burst", 3, "command burst size")
	fs.Uint32("controller.breaker_failures", 5, "consecutive command failures that open the breaker")
	fs.Duration("controller.breaker_timeout", 10*time.Second, "how long the breaker stays open")

	fs.String("log.level", "info", "log level (debug|info|warn|error)")
	fs.String("log.format", "text", "log format (text|json)")
	fs.String("log.file", "", "log to a rotated file instead of stderr")

	fs.String("http.addr", "127.0.0.1:8089", "listen address of the local http surface")

	fs.Bool("tracing.enabled", false, "enable the otel sdk tracer")
	fs.Float64("tracing.sample_ratio", 1.0, "trace sampling ratio")

	return fs
}

// LoadConfig merges flag defaults, an optional config file, VENDING_*
// environment variables and changed flags, in increasing priority.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if flags == nil {
		flags = Flags()
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.v = v

	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values no default can fix.
func (c *Config) Validate() error {
	if _, err := c.Identity(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Controller.StreamTransport {
	case TransportSSE, TransportWebsocket:
	default:
		return fmt.Errorf("%w: unknown stream transport %q", ErrInvalidConfig, c.Controller.StreamTransport)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0, 1]", ErrInvalidConfig)
	}

	return nil
}

// Identity returns the machine the session is bound to.
func (c *Config) Identity() (model.Identity, error) {
	return model.NewIdentity(c.Machine.Type, c.Machine.InstanceID)
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Watch calls onChange with the reloaded config every time the config file
// changes. Invalid revisions are reported through onError and skipped. It
// is a no-op when no file was loaded.
func (c *Config) Watch(onChange func(*Config), onError func(error)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.v.OnConfigChange(func(_ fsnotify.Event) {
		next, err := decode(c.v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		next.v = c.v
		onChange(next)
	})
	c.v.WatchConfig()
}
