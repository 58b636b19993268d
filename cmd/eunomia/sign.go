package main

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/config"
)

var signFlags struct {
	keyFile     string
	keyID       string
	generateKey bool
	out         string
}

var signCmd = &cobra.Command{
	Use:   "sign <bundle-archive>",
	Short: "Sign a compiled bundle",
	Long: `sign attaches an Ed25519 detached signature to a compiled bundle
archive. If the archive already carries a signatures.json entry, the new
signature is appended alongside the existing ones (co-signing).`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVar(&signFlags.keyFile, "key-file", "", "path to a base64 Ed25519 private key seed")
	signCmd.Flags().StringVar(&signFlags.keyID, "key-id", "", "key ID to record in the signature (default: eunomia)")
	signCmd.Flags().BoolVar(&signFlags.generateKey, "generate-key", false, "generate a new keypair and write it to --key-file")
	signCmd.Flags().StringVar(&signFlags.out, "out", "", "output path (default: overwrite the input archive)")
}

func runSign(cmd *cobra.Command, args []string) error {
	path := args[0]

	kp, err := resolveSigningKey()
	if err != nil {
		return err
	}

	b, err := bundle.FromFile(path)
	if err != nil {
		return fmt.Errorf("read bundle archive: %w", err)
	}

	var existing *sign.Envelope
	if prior, err := sign.ReadArchive(path); err == nil {
		existing = &prior.Envelope
	}

	sb := sign.NewSigner(kp).Sign(b, existing)

	out := signFlags.out
	if out == "" {
		out = path
	}
	if err := sign.WriteArchive(sb, out); err != nil {
		return fmt.Errorf("write signed archive: %w", err)
	}

	fmt.Printf("signed %s with key %q -> %s\n", b.FileName(), kp.KeyID, out)
	return nil
}

func resolveSigningKey() (*sign.KeyPair, error) {
	if signFlags.generateKey {
		if signFlags.keyFile == "" {
			return nil, fmt.Errorf("--generate-key requires --key-file to know where to write it")
		}
		keyID := signFlags.keyID
		if keyID == "" {
			keyID = "eunomia"
		}
		kp, err := sign.Generate(keyID)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		if err := os.WriteFile(signFlags.keyFile, []byte(kp.PrivateKeyBase64()), 0o600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
		pubPath := signFlags.keyFile + ".pub"
		if err := os.WriteFile(pubPath, []byte(kp.PublicKeyBase64()), 0o644); err != nil {
			return nil, fmt.Errorf("write public key file: %w", err)
		}
		fmt.Printf("generated key %q: private %s, public %s\n", keyID, signFlags.keyFile, pubPath)
		return kp, nil
	}

	if seed, ok := signingKeyFromEnvOrFile(); ok {
		priv, err := sign.ParsePrivateKey(seed)
		if err != nil {
			return nil, err
		}
		keyID := signFlags.keyID
		if keyID == "" {
			keyID = "eunomia"
		}
		pub := priv.Public().(ed25519.PublicKey)
		return &sign.KeyPair{KeyID: keyID, PrivateKey: priv, PublicKey: pub}, nil
	}
	return nil, fmt.Errorf("no signing key: set --key-file, --generate-key, or EUNOMIA_SIGNING_KEY")
}

// signingKeyFromEnvOrFile resolves the base64 private key seed, preferring
// EUNOMIA_SIGNING_KEY over --key-file per the documented precedence.
func signingKeyFromEnvOrFile() (string, bool) {
	if v, ok := config.SigningKeyFromEnv(); ok {
		return v, true
	}
	if signFlags.keyFile == "" {
		return "", false
	}
	data, err := os.ReadFile(signFlags.keyFile)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
