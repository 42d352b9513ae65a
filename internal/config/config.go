// Package config loads the response builder's Configuration (spec §6) from
// environment variables, a YAML file, and built-in defaults, in that order
// of decreasing precedence, following the same Viper-based layering the
// teacher repository uses for its own configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/dapserve/internal/bytesize"
)

// Config is the enumerated configuration object from spec.md §6.
//
// Configuration sources, in order of precedence (highest first):
//  1. Environment variables (DAPSERVE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// DatasetName identifies the dataset this server instance serves.
	DatasetName string `mapstructure:"dataset_name" yaml:"dataset_name" validate:"required"`

	// TimeoutSeconds is the per-response wall-clock deadline. 0 disables it.
	TimeoutSeconds int `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`

	// ResponseLimit bounds the constrained projection's estimated size.
	// 0 means unbounded.
	ResponseLimit bytesize.ByteSize `mapstructure:"response_limit" yaml:"response_limit"`

	// DefaultProtocol is the XDAP protocol version advertised when a request
	// does not specify one via a recognized keyword.
	DefaultProtocol string `mapstructure:"default_protocol" yaml:"default_protocol" validate:"required"`

	// Cache configures the disk-backed function-result cache.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Telemetry configures OpenTelemetry tracing (and, nested within it,
	// Pyroscope continuous profiling).
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	// 1.0 = sample all traces, 0.0 = no sampling.
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"omitempty,gte=0,lte=1"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling. When enabled,
// CPU and memory profiles are continuously sent to a Pyroscope server.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled.
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL).
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect. Valid values:
	// cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	// goroutines, mutex_count, mutex_duration, block_count, block_duration.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// CacheConfig configures the function-result cache (C6).
type CacheConfig struct {
	// RootDir is the directory cache entries are written under.
	RootDir string `mapstructure:"root_dir" yaml:"root_dir" validate:"required"`

	// Prefix is prepended to every cache file name.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// MaxBytes bounds total cache size. 0 disables the cache entirely: every
	// functional CE re-evaluates instead of being cached.
	MaxBytes bytesize.ByteSize `mapstructure:"max_bytes" yaml:"max_bytes"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath may be empty. When no config file is found (an empty path with
// no ./dapserve.yaml, or a path to a missing file), Load returns
// DefaultConfig() unchanged: environment variables are not consulted and
// Validate is not run. When a file is read, DAPSERVE_* variables override
// only the keys that the file itself sets.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		return DefaultConfig(), nil
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg, viper.DecodeHook(byteSizeDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DAPSERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(".")
	v.SetConfigName("dapserve")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// byteSizeDecodeHook lets config files and environment variables express
// ResponseLimit/MaxBytes as human-readable sizes ("500MiB") or plain
// integers of bytes.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

var validate = validator.New()

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Cache.RootDir != "" {
		if !filepath.IsAbs(cfg.Cache.RootDir) {
			return fmt.Errorf("cache.root_dir must be an absolute path, got %q", cfg.Cache.RootDir)
		}
	}
	return nil
}
