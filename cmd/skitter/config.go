package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skitter-run/skitter/pkg/config"
	"github.com/skitter-run/skitter/pkg/registry"
)

// loadConfig layers defaults, an optional --config file, SKITTER_*
// environment variables, and this command's own flags (highest
// precedence) into one Config, per spec.md §6's option table. keys names
// the subset of config.Config's mapstructure keys this subcommand exposes
// as flags, so only those are bound; a `worker` invocation has no
// `workers` flag to bind, for instance.
func loadConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	v := viper.New()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.LoadFile(v, path); err != nil {
			return nil, err
		}
	}

	if err := config.BindPFlags(v, cmd.Flags(), keys...); err != nil {
		return nil, err
	}

	return config.Load(v)
}

// resolveDeploy looks up name in the example registry, the `--deploy
// NAME`/`deploy` config key's target. Empty name means "nothing to
// deploy", matching the mode supervisors' own nil-factory convention.
func resolveDeploy(name string) (registry.WorkflowFactory, error) {
	if name == "" {
		return nil, nil
	}
	factory, err := examples.GetWorkflowFactory(name)
	if err != nil {
		return nil, fmt.Errorf("cmd/skitter: unknown --deploy workflow %q: %w", name, err)
	}
	return factory, nil
}

// workerAddresses resolves the worker address list from, in order of
// precedence: positional args, --worker-file, the loaded config's
// `workers` key.
func workerAddresses(args []string, workerFile string, cfg *config.Config) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if workerFile != "" {
		return config.LoadWorkerFile(workerFile)
	}
	return cfg.Workers, nil
}
