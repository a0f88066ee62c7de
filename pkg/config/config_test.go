package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/skitter-run/skitter/pkg/config"
)

func TestLoadAppliesShutdownWithMasterDefault(t *testing.T) {
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	require.True(t, cfg.ShutdownWithMaster)
	require.Empty(t, cfg.Workers)
	require.False(t, cfg.Telemetry)
}

func TestLoadReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skitter.yaml")
	yamlBody := "workers:\n  - 127.0.0.1:9001\n  - 127.0.0.1:9002\ntelemetry: true\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o644))

	v := viper.New()
	require.NoError(t, config.LoadFile(v, path))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1:9001", "127.0.0.1:9002"}, cfg.Workers)
	require.True(t, cfg.Telemetry)
	// File omits shutdown_with_master, so the documented default holds.
	require.True(t, cfg.ShutdownWithMaster)
}

func TestLoadFileNoopOnEmptyPath(t *testing.T) {
	v := viper.New()
	require.NoError(t, config.LoadFile(v, ""))
}

func TestLoadFileErrorsOnMissingFile(t *testing.T) {
	v := viper.New()
	err := config.LoadFile(v, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadEnvironmentOverridesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skitter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("master: 127.0.0.1:6000\n"), 0o644))
	t.Setenv("SKITTER_MASTER", "127.0.0.1:7000")

	v := viper.New()
	require.NoError(t, config.LoadFile(v, path))
	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:7000", cfg.Master)
}

func TestBindPFlagsOverridesWithExplicitFlag(t *testing.T) {
	fs := pflag.NewFlagSet("master", pflag.ContinueOnError)
	fs.Bool("shutdown-with-workers", false, "")
	require.NoError(t, fs.Set("shutdown-with-workers", "true"))

	v := viper.New()
	require.NoError(t, config.BindPFlags(v, fs, "shutdown_with_workers"))

	cfg, err := config.Load(v)
	require.NoError(t, err)
	require.True(t, cfg.ShutdownWithWorkers)
}

func TestBindPFlagsErrorsOnUnknownFlag(t *testing.T) {
	fs := pflag.NewFlagSet("master", pflag.ContinueOnError)
	v := viper.New()
	err := config.BindPFlags(v, fs, "deploy")
	require.Error(t, err)
}

func TestLoadWorkerFileParsesAddressList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workers.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  - 10.0.0.1:9000\n  - 10.0.0.2:9000\n"), 0o644))

	workers, err := config.LoadWorkerFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1:9000", "10.0.0.2:9000"}, workers)
}

func TestLoadWorkerFileErrorsOnMissingFile(t *testing.T) {
	_, err := config.LoadWorkerFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
