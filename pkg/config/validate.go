package config

import (
	"fmt"
	"net/url"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.
	// "registry.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access to
// all field errors.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail. All validation errors are
// collected and returned together, not just the first.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateSigning(&cfg.Signing)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateDistributor(&cfg.Distributor)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)
	errs = append(errs, validateGitSource(&cfg.GitSource)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateRegistry(r *RegistryConfig) []FieldError {
	var errs []FieldError
	if r.URL != "" {
		if _, err := url.Parse(r.URL); err != nil {
			errs = append(errs, FieldError{Field: "registry.url", Message: "must be a valid URL"})
		}
	}
	switch r.Auth.Kind {
	case "", AuthNone, AuthBasic, AuthBearer, AuthToken:
	default:
		errs = append(errs, FieldError{Field: "registry.auth.kind", Message: fmt.Sprintf("unknown auth kind %q", r.Auth.Kind)})
	}
	if r.Auth.Kind == AuthBasic && (r.Auth.Username == "" || r.Auth.Password == "") {
		errs = append(errs, FieldError{Field: "registry.auth", Message: "basic auth requires username and password"})
	}
	if r.Auth.Kind == AuthBearer && r.Auth.BearerToken == "" {
		errs = append(errs, FieldError{Field: "registry.auth.bearer_token", Message: "field is required for bearer auth"})
	}
	if r.Auth.Kind == AuthToken && r.Auth.TokenEnvVar == "" {
		errs = append(errs, FieldError{Field: "registry.auth.token_env_var", Message: "field is required for token auth"})
	}
	return errs
}

func validateSigning(s *SigningConfig) []FieldError {
	var errs []FieldError
	for keyID, pub := range s.TrustedKeys {
		if strings.TrimSpace(pub) == "" {
			errs = append(errs, FieldError{Field: "signing.trusted_keys." + keyID, Message: "public key must not be empty"})
		}
	}
	return errs
}

func validateCache(c *CacheConfig) []FieldError {
	var errs []FieldError
	if c.MaxBytes < 0 {
		errs = append(errs, FieldError{Field: "cache.max_bytes", Message: "must not be negative"})
	}
	return errs
}

func validateDistributor(d *DistributorConfig) []FieldError {
	var errs []FieldError
	if d.HealthFailureThreshold < 1 {
		errs = append(errs, FieldError{Field: "distributor.health_failure_threshold", Message: "must be at least 1"})
	}
	if d.ApplyMaxAttempts < 1 {
		errs = append(errs, FieldError{Field: "distributor.apply_max_attempts", Message: "must be at least 1"})
	}
	if d.HealthThreshold <= 0 || d.HealthThreshold > 1 {
		errs = append(errs, FieldError{Field: "distributor.health_threshold", Message: "must be in (0, 1]"})
	}
	if d.BatchFailureRate < 0 || d.BatchFailureRate > 1 {
		errs = append(errs, FieldError{Field: "distributor.batch_failure_rate", Message: "must be in [0, 1]"})
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch t.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("unknown level %q", t.Logging.Level)})
	}
	switch t.Logging.Format {
	case "", "json", "text", "console":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("unknown format %q", t.Logging.Format)})
	}
	if t.Tracing.SampleRatio < 0 || t.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be in [0, 1]"})
	}
	return errs
}

func validateSecrets(s *SecretsConfig) []FieldError {
	var errs []FieldError
	if s.Vault.Enabled && s.Vault.Address == "" {
		errs = append(errs, FieldError{Field: "secrets.vault.address", Message: "field is required when secrets.vault.enabled is true"})
	}
	if s.AWSKMS.Enabled && (s.AWSKMS.Region == "" || s.AWSKMS.KeyID == "") {
		errs = append(errs, FieldError{Field: "secrets.aws_kms", Message: "region and key_id are required when secrets.aws_kms.enabled is true"})
	}
	if s.GCPKMS.Enabled && (s.GCPKMS.Project == "" || s.GCPKMS.Location == "" || s.GCPKMS.KeyRing == "" || s.GCPKMS.Key == "") {
		errs = append(errs, FieldError{Field: "secrets.gcp_kms", Message: "project, location, key_ring and key are required when secrets.gcp_kms.enabled is true"})
	}
	if s.CacheMaxSize < 0 {
		errs = append(errs, FieldError{Field: "secrets.cache_max_size", Message: "must not be negative"})
	}
	return errs
}

func validateGitSource(g *GitSourceConfig) []FieldError {
	var errs []FieldError
	if g.Repository == "" {
		return nil
	}
	switch g.Auth.Type {
	case "", "none", "token", "ssh":
	default:
		errs = append(errs, FieldError{Field: "git_source.auth.type", Message: fmt.Sprintf("unknown auth type %q", g.Auth.Type)})
	}
	if g.Auth.Type == "token" && g.Auth.Token == "" {
		errs = append(errs, FieldError{Field: "git_source.auth.token", Message: "field is required when auth.type is \"token\""})
	}
	if g.Auth.Type == "ssh" && g.Auth.SSHKeyPath == "" {
		errs = append(errs, FieldError{Field: "git_source.auth.ssh_key_path", Message: "field is required when auth.type is \"ssh\""})
	}
	if g.Clone.Depth < 0 {
		errs = append(errs, FieldError{Field: "git_source.clone.depth", Message: "must not be negative"})
	}
	return errs
}
