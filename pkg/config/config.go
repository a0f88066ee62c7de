package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds the spec.md §6 configuration options. Every field is
// optional; zero values mean "not configured" except ShutdownWithMaster,
// whose documented default is true for workers.
type Config struct {
	// Workers is the list of worker addresses a master connects to at
	// startup; failure to connect to any of them is fatal.
	Workers []string `mapstructure:"workers"`
	// Master is the address a worker registers with; failure to connect
	// is a non-fatal warning.
	Master string `mapstructure:"master"`
	// ShutdownWithWorkers terminates a master when any registered worker
	// disconnects.
	ShutdownWithWorkers bool `mapstructure:"shutdown_with_workers"`
	// ShutdownWithMaster terminates a worker when its master disconnects.
	// Defaults to true.
	ShutdownWithMaster bool `mapstructure:"shutdown_with_master"`
	// Tags are symbols a worker advertises to masters.
	Tags []string `mapstructure:"tags"`
	// Deploy names a workflow factory, registered in the process's
	// registry, to deploy on startup (master and local modes).
	Deploy string `mapstructure:"deploy"`
	// Telemetry turns on OpenTelemetry spans for cluster events. Default
	// off. It is a run-time switch; the tracing code is compiled into
	// every build.
	Telemetry bool `mapstructure:"telemetry"`
}

// Defaults returns a Config with spec.md §6's documented defaults
// applied (currently just shutdown_with_master=true).
func Defaults() Config {
	return Config{ShutdownWithMaster: true}
}

// Load builds a Config from v: an optional config file (set via
// v.SetConfigFile or LoadFile before calling Load), environment
// variables under the SKITTER_ prefix, and any flags already bound with
// BindPFlags. Precedence follows Viper's own order: explicit Set calls,
// then flags, then env, then config file, then the defaults below.
//
// A nil v is equivalent to an unconfigured process: only defaults and
// whatever is already in the process environment apply.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix("SKITTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a registered default, even a zero one: Viper's
	// AutomaticEnv only consults SKITTER_* for keys it already knows
	// about when Unmarshal walks them, not arbitrary environment names.
	defaults := Defaults()
	v.SetDefault("workers", []string{})
	v.SetDefault("master", "")
	v.SetDefault("shutdown_with_workers", false)
	v.SetDefault("shutdown_with_master", defaults.ShutdownWithMaster)
	v.SetDefault("tags", []string{})
	v.SetDefault("deploy", "")
	v.SetDefault("telemetry", false)

	cfg := Config{}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// LoadFile points v at a YAML config file and reads it, if path is
// non-empty. A missing or unreadable file is an error; an empty path is
// a no-op, since the config file itself is always optional.
func LoadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}

// BindPFlags binds the named pflag.Flag values on fs into v under the
// same keys Config's mapstructure tags use, so a flag the user actually
// passed overrides the config file and environment, per spec.md §6's
// per-mode CLI surface. Unset flags keep whatever Load would otherwise
// resolve from file/env/defaults.
func BindPFlags(v *viper.Viper, fs *pflag.FlagSet, keys ...string) error {
	for _, key := range keys {
		flagName := strings.ReplaceAll(key, "_", "-")
		flag := fs.Lookup(flagName)
		if flag == nil {
			return fmt.Errorf("config: no flag %q for key %q", flagName, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("config: bind flag %q: %w", flagName, err)
		}
	}
	return nil
}

// WorkerFile is the document --worker-file PATH reads: a plain list of
// worker addresses, for masters and the deploy subcommand whose worker
// set is too long (or too dynamic) to pass as positional CLI arguments.
type WorkerFile struct {
	Workers []string `yaml:"workers"`
}

// LoadWorkerFile parses a --worker-file YAML document and returns its
// worker address list.
func LoadWorkerFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read worker file %s: %w", path, err)
	}

	var wf WorkerFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("config: parse worker file %s: %w", path, err)
	}
	return wf.Workers, nil
}
