package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dapserve/internal/bytesize"
)

func TestLoadWithoutConfigFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadParsesYAMLAndHumanReadableByteSizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dapserve.yaml")
	content := `
dataset_name: Sample
timeout: 30
response_limit: 2MiB
default_protocol: "4.0"
cache:
  root_dir: /var/cache/dapserve
  prefix: "dap_"
  max_bytes: 500MiB
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Sample", cfg.DatasetName)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, 2*bytesize.MiB, cfg.ResponseLimit)
	assert.Equal(t, "4.0", cfg.DefaultProtocol)
	assert.Equal(t, "/var/cache/dapserve", cfg.Cache.RootDir)
	assert.Equal(t, "dap_", cfg.Cache.Prefix)
	assert.Equal(t, 500*bytesize.MiB, cfg.Cache.MaxBytes)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dapserve.yaml")
	content := `
cache:
  root_dir: /var/cache/dapserve
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsRelativeCacheRoot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatasetName = "Sample"
	cfg.Cache.RootDir = "relative/path"

	err := Validate(cfg)
	assert.Error(t, err)
}

func TestValidateRejectsNegativeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatasetName = "Sample"
	cfg.TimeoutSeconds = -1

	err := Validate(cfg)
	assert.Error(t, err)
}
