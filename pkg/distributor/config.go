package distributor

import "time"

// RolloutConfig tunes the rollout algorithm's thresholds and timeouts. All
// fields have the spec's stated defaults and are overridable from the yaml
// config's distributor section.
type RolloutConfig struct {
	DiscoveryInterval      time.Duration // default 10s
	HealthProbeInterval    time.Duration // default 5s
	HealthFailureThreshold int           // default 3 consecutive failures -> Unhealthy
	InstanceGracePeriod    time.Duration // default 30s before a missing instance is dropped

	ApplyTimeout     time.Duration // per-instance Apply RPC timeout, default 30s
	ApplyMaxAttempts int           // per-instance push retry attempts, default 3
	SoakWindow       time.Duration // default 30s
	HealthThreshold  float64       // default 0.95 (fraction of updated instances that must stay Healthy)
	BatchFailureRate float64       // default 0.10 (>10% batch failures triggers rollback)
	DeploymentTimeout time.Duration // overall per-deployment budget, default 10m
}

// DefaultRolloutConfig returns the spec's stated defaults.
func DefaultRolloutConfig() RolloutConfig {
	return RolloutConfig{
		DiscoveryInterval:      10 * time.Second,
		HealthProbeInterval:    5 * time.Second,
		HealthFailureThreshold: 3,
		InstanceGracePeriod:    30 * time.Second,

		ApplyTimeout:      30 * time.Second,
		ApplyMaxAttempts:  3,
		SoakWindow:        30 * time.Second,
		HealthThreshold:   0.95,
		BatchFailureRate:  0.10,
		DeploymentTimeout: 10 * time.Minute,
	}
}
