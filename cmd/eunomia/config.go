package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/config"
	"github.com/eunomia-sh/eunomia/pkg/distributor"
	"github.com/eunomia-sh/eunomia/pkg/distributor/rpc"
	"github.com/eunomia-sh/eunomia/pkg/registry"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/logging"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/metrics"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/tracing"
)

// loadConfig reads cfgFile, tolerating its absence (every setting then
// falls back to its default plus EUNOMIA_* environment overrides) so the
// CLI works without a config file for simple one-off invocations.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		var cfg config.Config
		config.ApplyDefaults(&cfg)
		return &cfg, nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// newLogger builds the shared structured logger from cfg.Telemetry.Logging,
// wiring in async buffering and secret redaction, and returns its
// *slog.Logger view for components (pkg/distributor) written against the
// standard library interface.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}

	l, err := logging.New(logging.Config{
		Level:          level,
		Format:         cfg.Telemetry.Logging.Format,
		AddSource:      cfg.Telemetry.Logging.AddSource,
		RedactSecrets:  cfg.Telemetry.Logging.RedactSecrets,
		RedactPatterns: cfg.Telemetry.Logging.RedactPatterns,
		BufferSize:     cfg.Telemetry.Logging.BufferSize,
		Writer:         os.Stderr,
	})
	if err != nil {
		// Fall back to a bare handler rather than failing the command over
		// a malformed level/format, which Validate would already have
		// caught for a loaded config file.
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return l.Slog()
}

// newTracer builds the process-wide tracer from cfg.Telemetry.Tracing and
// registers it as the global OTel tracer provider so registry.Client,
// distributor.Distributor and the bundle builder can obtain spans through
// tracing.Tracer() without a reference threaded into their constructors.
// Callers are responsible for shutting it down.
func newTracer(cfg *config.Config, serviceName string) (*tracing.Tracer, error) {
	return tracing.New(&cfg.Telemetry.Tracing, serviceName)
}

// newMetricsCollector builds the shared Prometheus collector from
// cfg.Telemetry.Metrics. Nil-safe: Collector's Record* methods no-op when
// metrics are disabled in config.
func newMetricsCollector(cfg *config.Config) *metrics.Collector {
	return metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
}

// registryAuth builds an Authenticator from the config's auth section,
// resolving any "${secret:name}" reference in credential fields through
// the configured secret-provider chain first.
func registryAuth(ctx context.Context, cfg *config.Config) (registry.Authenticator, error) {
	mgr, err := newSecretsManager(cfg)
	if err != nil {
		return nil, err
	}

	a := cfg.Registry.Auth
	switch a.Kind {
	case config.AuthBasic:
		password, err := resolveSecretRefs(ctx, mgr, a.Password)
		if err != nil {
			return nil, fmt.Errorf("resolve registry.auth.password: %w", err)
		}
		return registry.BasicAuth{Username: a.Username, Password: password}, nil
	case config.AuthBearer:
		token, err := resolveSecretRefs(ctx, mgr, a.BearerToken)
		if err != nil {
			return nil, fmt.Errorf("resolve registry.auth.bearer_token: %w", err)
		}
		return registry.BearerAuth{Token: token}, nil
	case config.AuthToken:
		return registry.NewTokenProviderAuth(registry.StaticEnvTokenProvider{Token: os.Getenv(a.TokenEnvVar)}), nil
	default:
		return registry.NoAuth{}, nil
	}
}

// openRegistryClient wires a registry.Client from cfg and an optional
// --registry flag override, opening its local cache as a side effect.
func openRegistryClient(cfg *config.Config, registryURL string) (*registry.Client, error) {
	if registryURL == "" {
		registryURL = cfg.Registry.URL
	}
	if registryURL == "" {
		return nil, fmt.Errorf("no registry URL configured: pass --registry or set registry.url")
	}
	cache, err := registry.OpenCache(expandHome(cfg.Cache.Dir), cfg.Cache.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("open registry cache: %w", err)
	}
	auth, err := registryAuth(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	client := registry.NewClient(registryURL, cfg.Registry.Namespace, auth, cache)
	client.SetMetrics(newMetricsCollector(cfg))
	return client, nil
}

// loadVerifier builds a sign.Verifier trusting every key in
// cfg.Signing.TrustedKeys. Returns nil (verification skipped) if none are
// configured.
func loadVerifier(cfg *config.Config) (*sign.Verifier, error) {
	if len(cfg.Signing.TrustedKeys) == 0 {
		return nil, nil
	}
	v := sign.NewVerifier().WithRequireAll(cfg.Signing.RequireAll)
	for keyID, pubB64 := range cfg.Signing.TrustedKeys {
		pub, err := sign.ParsePublicKey(pubB64)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s: %w", keyID, err)
		}
		v.Trust(keyID, pub)
	}
	return v, nil
}

// expandHome expands a leading "~" to the user's home directory, matching
// the shorthand used in config defaults such as "~/.eunomia/cache".
func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return home + path[1:]
		}
	}
	return path
}

// rolloutConfig translates the yaml-facing DistributorConfig into the
// package's RolloutConfig.
func rolloutConfig(cfg *config.Config) distributor.RolloutConfig {
	c := cfg.Distributor
	return distributor.RolloutConfig{
		DiscoveryInterval:      c.DiscoveryInterval,
		HealthProbeInterval:    c.HealthProbeInterval,
		HealthFailureThreshold: c.HealthFailureThreshold,
		InstanceGracePeriod:    c.InstanceGracePeriod,
		ApplyTimeout:           c.ApplyTimeout,
		ApplyMaxAttempts:       c.ApplyMaxAttempts,
		SoakWindow:             c.SoakWindow,
		HealthThreshold:        c.HealthThreshold,
		BatchFailureRate:       c.BatchFailureRate,
		DeploymentTimeout:      c.DeploymentTimeout,
	}
}

// newDistributor wires a Distributor from cfg and discover, opening its
// registry client, verifier, and sqlite-backed deployment store. Callers
// are responsible for closing both the registry client and the store.
func newDistributor(cfg *config.Config, registryURL string, discover distributor.Discovery) (*distributor.Distributor, *registry.Client, *distributor.Store, error) {
	registryClient, err := openRegistryClient(cfg, registryURL)
	if err != nil {
		return nil, nil, nil, err
	}

	verifier, err := loadVerifier(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := distributor.OpenStore(expandHome(cfg.Distributor.StorePath))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open deployment store: %w", err)
	}

	receiver := rpc.NewGRPCReceiver()
	d := distributor.New(rolloutConfig(cfg), discover, receiver, registryClient, verifier, newLogger(cfg), store)
	d.SetMetrics(newMetricsCollector(cfg))
	return d, registryClient, store, nil
}
