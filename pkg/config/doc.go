// Package config provides configuration management for the eunomia CLI.
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only: cfg, err := config.LoadConfig("eunomia.yaml")
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("eunomia.yaml")
//
// # Environment Variable Overrides
//
// EUNOMIA_REGISTRY_URL, EUNOMIA_CACHE_DIR, EUNOMIA_DISTRIBUTOR_STORE_PATH,
// EUNOMIA_DISTRIBUTOR_DEPLOYMENT_TIMEOUT and the EUNOMIA_TELEMETRY_* family
// override their matching section. EUNOMIA_SIGNING_KEY is read separately
// via SigningKeyFromEnv, since the signing key itself is never persisted
// to the YAML config.
//
// # Precedence
//
// Defaults (defaults.go) < YAML file < environment overrides < validation.
//
// # Singleton Pattern
//
//	if err := config.Initialize("eunomia.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
package config
