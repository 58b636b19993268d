package config

import "time"

// Config is the root configuration structure for the eunomia CLI and its
// control-plane components. It is loaded from a YAML file (default
// "eunomia.yaml") with environment variable overrides applied on top,
// matching the reference CLI's env-var-overrides-config convention.
type Config struct {
	// Registry contains connection details for the OCI-compatible bundle
	// registry used by push/pull/deploy.
	Registry RegistryConfig `yaml:"registry"`

	// Signing contains the signing key and verification policy used by
	// the sign/validate commands and the distributor's push-time verify.
	Signing SigningConfig `yaml:"signing"`

	// Cache contains the local bundle cache's directory and size cap.
	Cache CacheConfig `yaml:"cache"`

	// Distributor contains the staged-rollout tuning parameters used by
	// the deploy command and any long-running distributor process.
	Distributor DistributorConfig `yaml:"distributor"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures the pluggable secret-provider chain used to
	// resolve "${secret:name}" references inside Registry.Auth's Password
	// and BearerToken.
	Secrets SecretsConfig `yaml:"secrets"`

	// GitSource configures an optional git-sourced policy directory that
	// "eunomia build" can poll and pull from instead of (or in addition
	// to) a local directory.
	GitSource GitSourceConfig `yaml:"git_source"`
}

// RegistryConfig describes how to reach the bundle registry.
type RegistryConfig struct {
	// URL is the registry's root, e.g. "https://registry.example.com".
	URL string `yaml:"url"`

	// Namespace prefixes every repository path within the registry.
	Namespace string `yaml:"namespace"`

	// Auth selects and configures the authenticator used for registry
	// requests.
	Auth AuthConfig `yaml:"auth"`
}

// AuthKind selects a registry authentication strategy.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBasic  AuthKind = "basic"
	AuthBearer AuthKind = "bearer"
	AuthToken  AuthKind = "token"
)

// AuthConfig configures registry authentication. Only the fields relevant
// to Kind are read.
type AuthConfig struct {
	Kind AuthKind `yaml:"kind"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	BearerToken string `yaml:"bearer_token"`

	// TokenEnvVar names the environment variable StaticEnvTokenProvider
	// reads from, for Kind: token.
	TokenEnvVar string `yaml:"token_env_var"`
}

// SigningConfig describes the signing key material and verification
// policy.
type SigningConfig struct {
	// KeyFile is a path to a file holding the base64 Ed25519 seed, in the
	// same format EUNOMIA_SIGNING_KEY carries it.
	KeyFile string `yaml:"key_file"`

	// KeyID identifies the signing key in the signature envelope.
	KeyID string `yaml:"key_id"`

	// TrustedKeys maps key IDs to base64 Ed25519 public keys, for
	// verification.
	TrustedKeys map[string]string `yaml:"trusted_keys"`

	// RequireAll demands unanimous verification across every signature in
	// an envelope instead of at least one.
	RequireAll bool `yaml:"require_all"`
}

// CacheConfig describes the registry client's local content cache.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// DistributorConfig mirrors distributor.RolloutConfig's tunables plus the
// persistence path for its sqlite-backed deployment store.
type DistributorConfig struct {
	DiscoveryInterval      time.Duration `yaml:"discovery_interval"`
	HealthProbeInterval    time.Duration `yaml:"health_probe_interval"`
	HealthFailureThreshold int           `yaml:"health_failure_threshold"`
	InstanceGracePeriod    time.Duration `yaml:"instance_grace_period"`
	ApplyTimeout           time.Duration `yaml:"apply_timeout"`
	ApplyMaxAttempts       int           `yaml:"apply_max_attempts"`
	SoakWindow             time.Duration `yaml:"soak_window"`
	HealthThreshold        float64       `yaml:"health_threshold"`
	BatchFailureRate       float64       `yaml:"batch_failure_rate"`
	DeploymentTimeout      time.Duration `yaml:"deployment_timeout"`

	StorePath string `yaml:"store_path"`
}

// TelemetryConfig contains observability configuration, carried regardless
// of which feature Non-goals apply, matching the reference's ambient
// logging/metrics/tracing stack.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
	// Format is one of "json", "text", "console".
	Format string `yaml:"format"`

	// AddSource includes the file:line the log call came from.
	AddSource bool `yaml:"add_source"`

	// RedactSecrets enables automatic redaction of signing keys, bearer
	// tokens, and basic-auth passwords from log field values.
	RedactSecrets bool `yaml:"redact_secrets"`

	// RedactPatterns extends the built-in redaction pattern table with
	// custom regular expressions.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`

	// BufferSize sizes the logger's LogBuffer entry queue, in entries; log
	// output is written synchronously and does not pass through it.
	BufferSize int `yaml:"buffer_size"`
}

// RedactPattern names a custom regular expression the logger's redactor
// applies to string field values before they reach the log writer.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures the Prometheus metrics exporter.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address"`
	Path          string `yaml:"path"`

	// Namespace and Subsystem prefix every metric name, e.g.
	// "eunomia_instance_apply_latency_seconds" with the default empty
	// Subsystem.
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are the histogram buckets (in seconds) used for
	// compile, sign, push/pull, and apply durations.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig configures OpenTelemetry tracing export.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// SecretsConfig configures the provider chain secrets.Manager resolves
// "${secret:name}" references against. The env provider is always
// present and the file provider is added when FileDir is set; Vault and
// the two KMS providers are added only when
// their section is Enabled, since they require reachable infrastructure a
// bare CLI invocation may not have.
type SecretsConfig struct {
	// EnvPrefix is prepended to a secret's upper-cased, underscored name
	// to form the environment variable the EnvProvider reads, e.g. name
	// "registry-password" with prefix "EUNOMIA_SECRET_" reads
	// "EUNOMIA_SECRET_REGISTRY_PASSWORD".
	EnvPrefix string `yaml:"env_prefix"`

	// FileDir is a directory of one-file-per-secret, read by the
	// FileProvider. Empty disables it.
	FileDir string `yaml:"file_dir"`

	Vault  VaultSecretsConfig  `yaml:"vault"`
	AWSKMS AWSKMSSecretsConfig `yaml:"aws_kms"`
	GCPKMS GCPKMSSecretsConfig `yaml:"gcp_kms"`

	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheMaxSize int           `yaml:"cache_max_size"`
}

type VaultSecretsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
	Path    string `yaml:"path"`
}

type AWSKMSSecretsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	KeyID   string `yaml:"key_id"`
}

type GCPKMSSecretsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
	KeyRing  string `yaml:"key_ring"`
	Key      string `yaml:"key"`
}

// GitSourceConfig points "eunomia build" at a git repository holding
// policy source instead of (or in addition to) a plain local directory.
type GitSourceConfig struct {
	// Repository is a clone URL, e.g. "https://github.com/acme/policies".
	Repository string `yaml:"repository"`

	// Branch is the branch to clone and track.
	Branch string `yaml:"branch"`

	// Path is the subdirectory within the repository holding .rego
	// policy files, relative to the repository root.
	Path string `yaml:"path"`

	Auth  GitAuthConfig  `yaml:"auth"`
	Clone GitCloneConfig `yaml:"clone"`
	Poll  GitPollConfig  `yaml:"poll"`
}

// GitAuthConfig selects how the git client authenticates to Repository.
type GitAuthConfig struct {
	// Type is one of "none", "token", "ssh".
	Type string `yaml:"type"`

	// Token is a personal-access or OAuth token, used when Type is
	// "token". The value is passed to the git client as written;
	// "${secret:name}" references in it are not resolved.
	Token string `yaml:"token"`

	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitCloneConfig tunes how the repository is cloned to local disk.
type GitCloneConfig struct {
	// LocalPath is where the repository is cloned. Defaults to a
	// subdirectory of the OS temp directory when empty.
	LocalPath string `yaml:"local_path"`

	// Depth requests a shallow clone. 0 clones full history.
	Depth int `yaml:"depth"`

	// CleanOnStart removes any existing local clone before cloning.
	CleanOnStart bool `yaml:"clean_on_start"`
}

// GitPollConfig tunes the background watcher that polls Repository for
// new commits and rebuilds the bundle when policy files change.
type GitPollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}
