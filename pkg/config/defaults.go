package config

import "time"

// Default values for configuration fields, applied by ApplyDefaults before
// a loaded file's values are validated.
const (
	DefaultRegistryNamespace = "eunomia"
	DefaultAuthKind          = AuthNone

	DefaultCacheDir      = "~/.eunomia/cache"
	DefaultCacheMaxBytes = int64(1) << 30 // 1GiB

	DefaultDiscoveryInterval      = 10 * time.Second
	DefaultHealthProbeInterval    = 5 * time.Second
	DefaultHealthFailureThreshold = 3
	DefaultInstanceGracePeriod    = 30 * time.Second
	DefaultApplyTimeout           = 30 * time.Second
	DefaultApplyMaxAttempts       = 3
	DefaultSoakWindow             = 30 * time.Second
	DefaultHealthThreshold        = 0.95
	DefaultBatchFailureRate       = 0.10
	DefaultDeploymentTimeout      = 10 * time.Minute
	DefaultStorePath              = "~/.eunomia/distributor.db"

	DefaultLoggingLevel      = "info"
	DefaultLoggingFormat     = "json"
	DefaultLoggingBufferSize = 10000

	DefaultMetricsListenAddress = "127.0.0.1:9469"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "eunomia"
	DefaultMetricsSubsystem     = ""

	DefaultTracingSampleRatio = 0.0

	DefaultSecretsEnvPrefix    = "EUNOMIA_SECRET_"
	DefaultSecretsCacheTTL     = 5 * time.Minute
	DefaultSecretsCacheMaxSize = 256

	DefaultGitSourceBranch        = "main"
	DefaultGitSourcePollInterval  = 30 * time.Second
	DefaultGitSourcePollTimeout   = 60 * time.Second
	DefaultGitAuthType            = "none"
)

// DefaultMetricsDurationBuckets are the histogram buckets used for compile,
// sign, push/pull, and apply durations (1ms to ~1 minute).
var DefaultMetricsDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ApplyDefaults fills every zero-valued field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	if cfg.Registry.Namespace == "" {
		cfg.Registry.Namespace = DefaultRegistryNamespace
	}
	if cfg.Registry.Auth.Kind == "" {
		cfg.Registry.Auth.Kind = DefaultAuthKind
	}

	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = DefaultCacheDir
	}
	if cfg.Cache.MaxBytes == 0 {
		cfg.Cache.MaxBytes = DefaultCacheMaxBytes
	}

	d := &cfg.Distributor
	if d.DiscoveryInterval == 0 {
		d.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if d.HealthProbeInterval == 0 {
		d.HealthProbeInterval = DefaultHealthProbeInterval
	}
	if d.HealthFailureThreshold == 0 {
		d.HealthFailureThreshold = DefaultHealthFailureThreshold
	}
	if d.InstanceGracePeriod == 0 {
		d.InstanceGracePeriod = DefaultInstanceGracePeriod
	}
	if d.ApplyTimeout == 0 {
		d.ApplyTimeout = DefaultApplyTimeout
	}
	if d.ApplyMaxAttempts == 0 {
		d.ApplyMaxAttempts = DefaultApplyMaxAttempts
	}
	if d.SoakWindow == 0 {
		d.SoakWindow = DefaultSoakWindow
	}
	if d.HealthThreshold == 0 {
		d.HealthThreshold = DefaultHealthThreshold
	}
	if d.BatchFailureRate == 0 {
		d.BatchFailureRate = DefaultBatchFailureRate
	}
	if d.DeploymentTimeout == 0 {
		d.DeploymentTimeout = DefaultDeploymentTimeout
	}
	if d.StorePath == "" {
		d.StorePath = DefaultStorePath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Logging.BufferSize == 0 {
		cfg.Telemetry.Logging.BufferSize = DefaultLoggingBufferSize
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		cfg.Telemetry.Metrics.DurationBuckets = DefaultMetricsDurationBuckets
	}

	if cfg.GitSource.Branch == "" {
		cfg.GitSource.Branch = DefaultGitSourceBranch
	}
	if cfg.GitSource.Auth.Type == "" {
		cfg.GitSource.Auth.Type = DefaultGitAuthType
	}
	if cfg.GitSource.Poll.Interval == 0 {
		cfg.GitSource.Poll.Interval = DefaultGitSourcePollInterval
	}
	if cfg.GitSource.Poll.Timeout == 0 {
		cfg.GitSource.Poll.Timeout = DefaultGitSourcePollTimeout
	}

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretsCacheTTL
	}
	if cfg.Secrets.CacheMaxSize == 0 {
		cfg.Secrets.CacheMaxSize = DefaultSecretsCacheMaxSize
	}
}
