package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at path. It applies
// default values, validates the configuration, and returns any errors. The
// configuration is not modified by environment variables; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables always
// take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file (applies defaults)
//  2. Apply environment variable overrides
//  3. Re-validate
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies the environment variables documented in the
// CLI's external interfaces: EUNOMIA_SIGNING_KEY is read directly by the
// signing commands rather than stored on Config, but EUNOMIA_REGISTRY_URL,
// EUNOMIA_CACHE_DIR and the EUNOMIA_DISTRIBUTOR_* and EUNOMIA_TELEMETRY_*
// variables below override their matching field here.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("EUNOMIA_REGISTRY_URL"); val != "" {
		cfg.Registry.URL = val
	}
	if val := os.Getenv("EUNOMIA_CACHE_DIR"); val != "" {
		cfg.Cache.Dir = val
	}

	if val := os.Getenv("EUNOMIA_DISTRIBUTOR_STORE_PATH"); val != "" {
		cfg.Distributor.StorePath = val
	}
	if val := os.Getenv("EUNOMIA_DISTRIBUTOR_DEPLOYMENT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Distributor.DeploymentTimeout = d
		}
	}

	if val := os.Getenv("EUNOMIA_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("EUNOMIA_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("EUNOMIA_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("EUNOMIA_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
}

// SigningKeyFromEnv reads the EUNOMIA_SIGNING_KEY environment variable,
// used by the sign command as the highest-precedence source of signing
// key material, ahead of its --key-file flag.
func SigningKeyFromEnv() (string, bool) {
	v := os.Getenv("EUNOMIA_SIGNING_KEY")
	return v, v != ""
}
