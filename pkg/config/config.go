// Package config provides configuration loading and validation for gridagg.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/gridagg/pkg/rank"
	"github.com/Sumatoshi-tech/gridagg/pkg/report"
)

// Sentinel validation errors.
var (
	ErrInvalidLimit     = errors.New("report limit must not be negative")
	ErrInvalidSortBy    = errors.New("invalid report sort metric")
	ErrInvalidExtremal  = errors.New("invalid extremal mode")
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidDelimiter = errors.New("input delimiter must not be empty")
	ErrInvalidLogFormat = errors.New("invalid logging format")
)

// Extremal modes.
const (
	ExtremalAuto   = "auto"
	ExtremalAlways = "always"
	ExtremalNever  = "never"
)

// Logging formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

const envPrefix = "GRIDAGG"

// Config holds all configuration for a gridagg run.
type Config struct {
	Input     InputConfig     `mapstructure:"input"`
	Output    OutputConfig    `mapstructure:"output"`
	Report    ReportConfig    `mapstructure:"report"`
	Plot      PlotConfig      `mapstructure:"plot"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// InputConfig locates and splits the filtered station files.
type InputConfig struct {
	Directory string `mapstructure:"directory"`
	Delimiter string `mapstructure:"delimiter"`
}

// OutputConfig controls where and how reports are written.
type OutputConfig struct {
	Directory string `mapstructure:"directory"`
	Format    string `mapstructure:"format"`
	Compress  bool   `mapstructure:"compress"`
}

// ReportConfig controls ranking.
type ReportConfig struct {
	SortBy   string `mapstructure:"sort_by"`
	Extremal string `mapstructure:"extremal"`
	Limit    int    `mapstructure:"limit"`
}

// PlotConfig controls chart generation.
type PlotConfig struct {
	GnuplotBinary string `mapstructure:"gnuplot_binary"`
	HTML          bool   `mapstructure:"html"`
	Gnuplot       bool   `mapstructure:"gnuplot"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export and diagnostics settings.
type TelemetryConfig struct {
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	OTLPHeaders     string `mapstructure:"otlp_headers"`
	Environment     string `mapstructure:"environment"`
	DiagnosticsAddr string `mapstructure:"diagnostics_addr"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for gridagg.yaml in the usual places; a
// missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("gridagg")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/gridagg")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

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

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("input.directory", DefaultInputDirectory)
	viperCfg.SetDefault("input.delimiter", DefaultDelimiter)

	viperCfg.SetDefault("output.directory", DefaultOutputDirectory)
	viperCfg.SetDefault("output.format", report.FormatLines)
	viperCfg.SetDefault("output.compress", false)

	viperCfg.SetDefault("report.limit", DefaultLimit)
	viperCfg.SetDefault("report.sort_by", rank.MetricNameCapacity)
	viperCfg.SetDefault("report.extremal", ExtremalAuto)

	viperCfg.SetDefault("plot.html", true)
	viperCfg.SetDefault("plot.gnuplot", false)
	viperCfg.SetDefault("plot.gnuplot_binary", "gnuplot")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", LogFormatText)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.diagnostics_addr", "")
}

// Validate checks the values that flags may have overridden after loading.
func (c *Config) Validate() error {
	if c.Input.Delimiter == "" {
		return ErrInvalidDelimiter
	}

	if c.Report.Limit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, c.Report.Limit)
	}

	_, err := rank.ParseMetric(c.Report.SortBy)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSortBy, err)
	}

	switch c.Report.Extremal {
	case ExtremalAuto, ExtremalAlways, ExtremalNever:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidExtremal, c.Report.Extremal)
	}

	if !report.ValidFormat(c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}

	return nil
}
