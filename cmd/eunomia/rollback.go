package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/distributor"
	"github.com/eunomia-sh/eunomia/pkg/distributor/rpc"
)

var rollbackFlags struct {
	registryURL string
	instances   string
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <deployment-id>",
	Short: "Redeploy a past deployment's previous version",
	Long: `rollback looks up a previously recorded deployment by ID, then
redeploys its previous_version to the same service as a fresh all-at-once
deployment. It does not replay the original deployment's batching or soak
windows.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
	rollbackCmd.Flags().StringVar(&rollbackFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
	rollbackCmd.Flags().StringVar(&rollbackFlags.instances, "instances", "", "comma-separated instance_id@endpoint pairs to roll back; when empty, no instances are discovered")
}

func runRollback(cmd *cobra.Command, args []string) error {
	deploymentID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := distributor.OpenStore(expandHome(cfg.Distributor.StorePath))
	if err != nil {
		return fmt.Errorf("open deployment store: %w", err)
	}
	defer store.Close()

	past, err := store.LoadDeploymentByID(deploymentID)
	if err != nil {
		return err
	}
	if past == nil {
		return fmt.Errorf("no deployment recorded with ID %s", deploymentID)
	}
	if past.PreviousVersion == "" {
		return fmt.Errorf("deployment %s has no previous_version to roll back to", deploymentID)
	}

	var discovered []distributor.DiscoveredInstance
	if rollbackFlags.instances != "" {
		discovered, err = parseInstances(rollbackFlags.instances)
		if err != nil {
			return err
		}
	}
	discover := distributor.StaticDiscovery{Instances: map[string][]distributor.DiscoveredInstance{past.Service: discovered}}

	registryClient, err := openRegistryClient(cfg, rollbackFlags.registryURL)
	if err != nil {
		return err
	}
	defer registryClient.Close()

	verifier, err := loadVerifier(cfg)
	if err != nil {
		return err
	}

	d := distributor.New(rolloutConfig(cfg), discover, rpc.NewGRPCReceiver(), registryClient, verifier, newLogger(cfg), store)

	ctx := context.Background()
	d.Watch(past.Service)
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start distributor: %w", err)
	}
	defer d.Stop()

	fmt.Printf("rolling back %s: %s -> %s\n", past.Service, past.TargetVersion, past.PreviousVersion)
	dep, err := d.Deploy(ctx, past.Service, past.PreviousVersion, distributor.AllAtOnceStrategy())
	if err != nil {
		return err
	}

	fmt.Printf("deployment %s: %s -> %s [%s]\n", dep.DeploymentID, past.Service, dep.TargetVersion, dep.State)
	if dep.Error != "" {
		return fmt.Errorf("%s", dep.Error)
	}
	return nil
}
