package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/distributor"
)

var statusFlags struct {
	registryURL string
}

var statusCmd = &cobra.Command{
	Use:   "status <service>",
	Short: "Show a service's current deployment and instance fleet",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	service := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	discover := distributor.StaticDiscovery{}
	d, registryClient, store, err := newDistributor(cfg, statusFlags.registryURL, discover)
	if err != nil {
		return err
	}
	defer registryClient.Close()
	defer store.Close()

	dep, instances := d.Status(service)
	if dep == nil {
		// The in-process Distributor never ran a rollout in this
		// invocation; fall back to the last persisted state.
		dep, err = store.LoadLatestDeploymentForService(service)
		if err != nil {
			return err
		}
	}
	if dep == nil {
		fmt.Printf("%s: no deployment recorded\n", service)
	} else {
		fmt.Printf("%s: deployment %s, %s -> %s [%s]\n", service, dep.DeploymentID, dep.PreviousVersion, dep.TargetVersion, dep.State)
		if dep.Error != "" {
			fmt.Printf("  error: %s\n", dep.Error)
		}
	}

	fmt.Printf("instances (%d):\n", len(instances))
	for _, rec := range instances {
		fmt.Printf("  %s %s version=%s status=%s\n", rec.InstanceID, rec.Endpoint, rec.Version, rec.Status)
	}
	return nil
}
