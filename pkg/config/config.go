// Package config provides configuration loading and validation for perfsummary.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/perfsummary/pkg/observability"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidWorkers     = errors.New("data workers must not be negative")
	ErrInvalidWeeks       = errors.New("summary weeks out of range")
	ErrInvalidWindow      = errors.New("summary window must be positive")
	ErrInvalidTotalWeeks  = errors.New("summary total weeks out of range")
	ErrInvalidWeekStart   = errors.New("unknown summary week start")
	ErrInvalidSampleRatio = errors.New("telemetry sample ratio must be within [0, 1]")
	ErrInvalidLogFormat   = errors.New("logging format must be text or json")
)

// Default configuration values.
const (
	DefaultDataDir        = "."
	DefaultPort           = 8080
	DefaultHost           = "127.0.0.1"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultWeekStart      = "sunday"
	DefaultReloadInterval = time.Duration(0)
	DefaultSlackUsername  = "perfsummary"

	// EnvPrefix prefixes every environment override, e.g. PERFSUMMARY_SERVER_PORT.
	EnvPrefix = "PERFSUMMARY"

	maxPort = 65535
)

// Config holds all configuration for perfsummary.
type Config struct {
	Data      DataConfig      `mapstructure:"data"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DataConfig locates and parses the results directory.
type DataConfig struct {
	Dir            string `mapstructure:"dir"`
	Workers        int    `mapstructure:"workers"`
	ValidateSchema bool   `mapstructure:"validate_schema"`
}

// SummaryConfig shapes the trailing windows.
type SummaryConfig struct {
	Weeks      int           `mapstructure:"weeks"`
	TotalWeeks int           `mapstructure:"total_weeks"`
	Window     time.Duration `mapstructure:"window"`
	WeekStart  string        `mapstructure:"week_start"`
	Parallel   bool          `mapstructure:"parallel"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	ReloadInterval time.Duration `mapstructure:"reload_interval"`
}

// NotifyConfig holds outbound notification targets.
type NotifyConfig struct {
	Slack SlackConfig `mapstructure:"slack"`
}

// SlackConfig configures the incoming-webhook notifier.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
	Username   string `mapstructure:"username"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Environment  string  `mapstructure:"environment"`
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Missing
// files are ignored and variables already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	return nil
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for perfsummary.yaml in the usual places.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("perfsummary")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/perfsummary")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// The standard OTel variable is honoured when no prefixed override is set.
	bindErr := viperCfg.BindEnv("telemetry.otlp_endpoint",
		EnvPrefix+"_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	if bindErr != nil {
		return nil, fmt.Errorf("bind telemetry env: %w", bindErr)
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("data.dir", DefaultDataDir)
	viperCfg.SetDefault("data.workers", 0)
	viperCfg.SetDefault("data.validate_schema", true)

	viperCfg.SetDefault("summary.weeks", summary.DefaultWeeks)
	viperCfg.SetDefault("summary.total_weeks", summary.DefaultTotalWeeks)
	viperCfg.SetDefault("summary.window", summary.DefaultWindow.String())
	viperCfg.SetDefault("summary.week_start", DefaultWeekStart)
	viperCfg.SetDefault("summary.parallel", false)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)

	viperCfg.SetDefault("server.host", DefaultHost)
	viperCfg.SetDefault("server.port", DefaultPort)
	viperCfg.SetDefault("server.read_timeout", "30s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
	viperCfg.SetDefault("server.reload_interval", DefaultReloadInterval.String())

	viperCfg.SetDefault("notify.slack.webhook_url", "")
	viperCfg.SetDefault("notify.slack.channel", "")
	viperCfg.SetDefault("notify.slack.username", DefaultSlackUsername)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.environment", "")
}

func validateConfig(config *Config) error {
	if config.Data.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Data.Workers)
	}

	if config.Summary.Weeks <= 0 || config.Summary.Weeks > summary.MaxWeeks {
		return fmt.Errorf("%w: %d", ErrInvalidWeeks, config.Summary.Weeks)
	}

	if config.Summary.Window <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidWindow, config.Summary.Window)
	}

	if config.Summary.TotalWeeks < 0 || config.Summary.TotalWeeks > summary.MaxWeeks {
		return fmt.Errorf("%w: %d", ErrInvalidTotalWeeks, config.Summary.TotalWeeks)
	}

	_, err := summary.ParseWeekday(config.Summary.WeekStart)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidWeekStart, config.Summary.WeekStart)
	}

	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Logging.Format != "text" && config.Logging.Format != "json" {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}

// Workers returns the loader pool size, resolving 0 to the CPU count.
func (c *Config) Workers() int {
	if c.Data.Workers > 0 {
		return c.Data.Workers
	}

	return runtime.NumCPU()
}

// SummaryOptions converts the summary section into builder options.
func (c *Config) SummaryOptions() (summary.Options, error) {
	weekStart, err := summary.ParseWeekday(c.Summary.WeekStart)
	if err != nil {
		return summary.Options{}, err
	}

	opts := summary.Options{
		Weeks:      c.Summary.Weeks,
		Window:     c.Summary.Window,
		TotalWeeks: c.Summary.TotalWeeks,
		WeekStart:  weekStart,
		Parallel:   c.Summary.Parallel,
	}

	err = opts.Validate()
	if err != nil {
		return summary.Options{}, fmt.Errorf("summary options: %w", err)
	}

	return opts, nil
}

// Observability converts the logging and telemetry sections into an
// observability config for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()
	obs.Mode = mode
	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.LogLevel = observability.ParseLevel(c.Logging.Level)
	obs.LogJSON = c.Logging.Format == "json"

	return obs
}

// Addr returns the server listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
