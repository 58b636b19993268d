package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/distributor"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/health"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/metrics"
)

// eunomiaVersion is reported on the serve command's /version endpoint.
const eunomiaVersion = "0.1.0"

var serveFlags struct {
	registryURL string
	watch       string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the distributor as a long-lived control plane",
	Long: `serve starts the distributor's discovery and health-probe loops and
keeps running, exposing Prometheus metrics and liveness/readiness endpoints
over HTTP at telemetry.metrics.listen_address until interrupted. Use "deploy"
in a separate invocation to drive a rollout against the running instance
table.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.registryURL, "registry", "", "registry base URL (default: registry.url from config)")
	serveCmd.Flags().StringVar(&serveFlags.watch, "watch", "", `services and their known instances, e.g. "users:i1@10.0.0.1:7443,i2@10.0.0.2:7443;orders:i3@10.0.0.3:7443"`)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	discover, services, err := parseWatchSpec(serveFlags.watch)
	if err != nil {
		return err
	}

	d, registryClient, store, err := newDistributor(cfg, serveFlags.registryURL, discover)
	if err != nil {
		return err
	}
	defer registryClient.Close()
	defer store.Close()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	d.SetMetrics(collector)
	registryClient.SetMetrics(collector)

	for _, service := range services {
		d.Watch(service)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start distributor: %w", err)
	}
	defer d.Stop()

	mux := http.NewServeMux()
	health.HTTPMiddleware(mux, d.HealthChecker(), eunomiaVersion, "", "")
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(metricsPath(cfg.Telemetry.Metrics.Path), collector.Handler())
	}

	srv := &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	fmt.Printf("eunomia serve: watching %d service(s), http on %s\n", len(services), cfg.Telemetry.Metrics.ListenAddress)

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health/metrics server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// parseWatchSpec turns "--watch" ("service:id@endpoint,...;service2:...")
// into a StaticDiscovery and the list of service names to Watch.
func parseWatchSpec(spec string) (distributor.StaticDiscovery, []string, error) {
	discover := distributor.StaticDiscovery{Instances: make(map[string][]distributor.DiscoveredInstance)}
	if spec == "" {
		return discover, nil, nil
	}

	var services []string
	for _, group := range strings.Split(spec, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		service, rest, ok := strings.Cut(group, ":")
		if !ok || service == "" {
			return discover, nil, fmt.Errorf("invalid --watch group %q: expected service:id@endpoint,...", group)
		}
		instances, err := parseInstances(rest)
		if err != nil {
			return discover, nil, fmt.Errorf("service %s: %w", service, err)
		}
		discover.Instances[service] = instances
		services = append(services, service)
	}
	return discover, services, nil
}

func metricsPath(p string) string {
	if p == "" {
		return "/metrics"
	}
	return p
}
