package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skitter-run/skitter/pkg/supervisor"
)

// deployCmd is a one-shot variant of `master`: connect to the given
// workers, deploy the named workflow, and exit, rather than staying
// resident to watch for worker disconnects, which is what `master` alone
// is for. `--no-shutdown-with-master` (spec.md §6's flag for this
// subcommand, otherwise only meaningful for `worker`) is read here as
// "stay resident like master instead of exiting once deployed"; see
// DESIGN.md's Open Question decisions for the reasoning, since the
// upstream spec never otherwise explains why a deploy-to-workers command
// would carry a master-disconnect flag.
var deployCmd = &cobra.Command{
	Use:   "deploy worker_address...",
	Short: "Deploy a workflow to a set of already-running workers",
	Args:  cobra.MinimumNArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, "deploy")
		if err != nil {
			return err
		}

		workerFile, _ := cmd.Flags().GetString("worker-file")
		workers, err := workerAddresses(args, workerFile, cfg)
		if err != nil {
			return err
		}

		deployName, _ := cmd.Flags().GetString("deploy")
		if deployName == "" {
			deployName = cfg.Deploy
		}
		factory, err := resolveDeploy(deployName)
		if err != nil {
			return err
		}

		stayResident, _ := cmd.Flags().GetBool("no-shutdown-with-master")
		addr, _ := cmd.Flags().GetString("addr")
		token, _ := cmd.Flags().GetString("token")

		m := supervisor.NewMaster(supervisor.MasterConfig{
			Addr:    addr,
			Workers: workers,
			Deploy:  factory,
			Token:   token,
		})

		if err := m.Start(); err != nil {
			m.Stop()
			return err
		}

		if !stayResident {
			m.Stop()
			return nil
		}

		code, err := m.Wait(context.Background())
		exitCode = int(code)
		m.Stop()
		return err
	},
}

func init() {
	deployCmd.Flags().String("addr", "deploy-client", "This process's cluster address/identity")
	deployCmd.Flags().String("token", "", "Join token presented to the workers")
	deployCmd.Flags().String("deploy", "", "Name of a registered workflow to deploy")
	deployCmd.Flags().String("worker-file", "", "YAML file listing worker addresses (an alternative to positional args)")
	deployCmd.Flags().Bool("no-shutdown-with-master", false, "Stay resident (like `master`) instead of exiting once deployed")
}
