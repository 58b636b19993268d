package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/distributor"
)

var deployFlags struct {
	registryURL string
	strategy    string
	instances   string
	timeout     time.Duration
}

var deployCmd = &cobra.Command{
	Use:   "deploy <service> <version>",
	Short: "Roll out a bundle version to a fleet of enforcement instances",
	Long: `deploy drives a staged rollout of <version> to every instance named in
--instances, batching per --strategy, health-gating each batch's soak
window, and rolling back automatically if the batch failure rate or the
post-soak health threshold is breached.`,
	Args: cobra.ExactArgs(2),
	RunE: runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringVar(&deployFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
	deployCmd.Flags().StringVar(&deployFlags.strategy, "strategy", "all", `rollout strategy: "all", "canary:<percent>", or "rolling:<batch-size>"`)
	deployCmd.Flags().StringVar(&deployFlags.instances, "instances", "", "comma-separated instance_id@endpoint pairs, e.g. i1@10.0.0.1:7443,i2@10.0.0.2:7443")
	deployCmd.Flags().DurationVar(&deployFlags.timeout, "wait-discovery", 2*time.Second, "how long to let discovery settle before deploying")
	_ = deployCmd.MarkFlagRequired("instances")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	service, version := args[0], args[1]

	strategy, err := parseStrategy(deployFlags.strategy)
	if err != nil {
		return err
	}

	discovered, err := parseInstances(deployFlags.instances)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	discover := distributor.StaticDiscovery{Instances: map[string][]distributor.DiscoveredInstance{service: discovered}}
	d, registryClient, store, err := newDistributor(cfg, deployFlags.registryURL, discover)
	if err != nil {
		return err
	}
	defer registryClient.Close()
	defer store.Close()

	ctx := context.Background()
	d.Watch(service)
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start distributor: %w", err)
	}
	defer d.Stop()

	// Let the first discovery and health-probe tick populate the instance
	// table before computing batches off it.
	time.Sleep(deployFlags.timeout)

	dep, err := d.Deploy(ctx, service, version, strategy)
	if err != nil {
		return err
	}

	fmt.Printf("deployment %s: %s -> %s [%s]\n", dep.DeploymentID, service, version, dep.State)
	for _, b := range dep.Batches {
		fmt.Printf("  batch %d: %d succeeded, %d failed, soak passed=%v\n",
			b.BatchIndex, len(b.Succeeded), len(b.Failed), b.SoakPassed)
	}
	if dep.Error != "" {
		return fmt.Errorf("%s", dep.Error)
	}
	return nil
}

// parseStrategy turns --strategy's string form into a distributor.Strategy.
func parseStrategy(s string) (distributor.Strategy, error) {
	kind, arg, _ := strings.Cut(s, ":")
	switch kind {
	case "all", "":
		return distributor.AllAtOnceStrategy(), nil
	case "canary":
		percent, err := strconv.Atoi(arg)
		if err != nil {
			return distributor.Strategy{}, fmt.Errorf("canary strategy requires an integer percent, got %q", arg)
		}
		return distributor.CanaryStrategy(percent), nil
	case "rolling":
		size, err := strconv.Atoi(arg)
		if err != nil {
			return distributor.Strategy{}, fmt.Errorf("rolling strategy requires an integer batch size, got %q", arg)
		}
		return distributor.RollingStrategy(size), nil
	default:
		return distributor.Strategy{}, fmt.Errorf("unknown strategy %q: expected all, canary:<percent>, or rolling:<size>", s)
	}
}

// parseInstances turns "--instances" ("id@endpoint,id@endpoint,...") into
// DiscoveredInstances for a StaticDiscovery.
func parseInstances(s string) ([]distributor.DiscoveredInstance, error) {
	if s == "" {
		return nil, fmt.Errorf("--instances is required")
	}
	var out []distributor.DiscoveredInstance
	for _, part := range strings.Split(s, ",") {
		id, endpoint, ok := strings.Cut(strings.TrimSpace(part), "@")
		if !ok || id == "" || endpoint == "" {
			return nil, fmt.Errorf("invalid --instances entry %q: expected id@endpoint", part)
		}
		out = append(out, distributor.DiscoveredInstance{InstanceID: id, Endpoint: endpoint})
	}
	return out, nil
}
