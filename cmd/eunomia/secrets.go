package main

import (
	"context"
	"fmt"

	"github.com/eunomia-sh/eunomia/pkg/config"
	"github.com/eunomia-sh/eunomia/pkg/security/secrets"
)

// newSecretsManager builds the provider chain "${secret:name}" references
// resolve against: an env-var provider and, when configured, a file
// provider plus Vault/AWS KMS/GCP KMS, each added only when its section is
// explicitly enabled since they assume reachable infrastructure a bare CLI
// invocation may not have.
func newSecretsManager(cfg *config.Config) (*secrets.Manager, error) {
	s := cfg.Secrets
	providers := []secrets.SecretProvider{secrets.NewEnvProvider(s.EnvPrefix)}

	if s.FileDir != "" {
		fp, err := secrets.NewFileProvider(s.FileDir, false)
		if err != nil {
			return nil, fmt.Errorf("open file secrets provider: %w", err)
		}
		providers = append(providers, fp)
	}
	if s.Vault.Enabled {
		providers = append(providers, secrets.NewVaultProvider(s.Vault.Address, s.Vault.Token, s.Vault.Path, true))
	}
	if s.AWSKMS.Enabled {
		providers = append(providers, secrets.NewAWSKMSProvider(s.AWSKMS.Region, s.AWSKMS.KeyID, true))
	}
	if s.GCPKMS.Enabled {
		providers = append(providers, secrets.NewGCPKMSProvider(s.GCPKMS.Project, s.GCPKMS.Location, s.GCPKMS.KeyRing, s.GCPKMS.Key, true))
	}

	return secrets.NewManager(providers, secrets.CacheConfig{
		Enabled: true,
		TTL:     s.CacheTTL,
		MaxSize: s.CacheMaxSize,
	}), nil
}

// resolveSecretRefs resolves every "${secret:name}" reference in value
// through mgr, returning value unchanged if it contains none.
func resolveSecretRefs(ctx context.Context, mgr *secrets.Manager, value string) (string, error) {
	if value == "" {
		return value, nil
	}
	return mgr.ResolveReferences(ctx, value)
}
