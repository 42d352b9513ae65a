package config

import (
	"os"
	"path/filepath"

	"github.com/marmos91/dapserve/internal/bytesize"
)

// DefaultConfig returns the configuration used when no config file is
// present: a permissive, cache-enabled setup rooted under the system temp
// directory, matching what a fresh `dapserve` checkout would run with
// before an operator supplies a real dataset name.
func DefaultConfig() *Config {
	return &Config{
		DatasetName:     "",
		TimeoutSeconds:  0,
		ResponseLimit:   0,
		DefaultProtocol: "3.2",
		Cache: CacheConfig{
			RootDir:  filepath.Join(os.TempDir(), "dapserve-cache"),
			Prefix:   "",
			MaxBytes: 1 * bytesize.GiB,
		},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
			Profiling: ProfilingConfig{
				Enabled:      false,
				Endpoint:     "http://localhost:4040",
				ProfileTypes: []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"},
			},
		},
	}
}
