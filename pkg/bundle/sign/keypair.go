// Package sign implements the compiler's C6 stage: Ed25519 detached
// signatures over a Bundle's canonical manifest, and the keypair format the
// CLI's "eunomia sign --generate-key" command produces.
package sign

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeyPair is an Ed25519 signing key, serialized the way the reference CLI's
// key-generation command emits keys: base64 of the 32-byte seed for the
// private half, base64 of the 32-byte public key for the public half.
type KeyPair struct {
	KeyID      string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// Generate creates a new KeyPair using a cryptographically secure RNG.
func Generate(keyID string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &KeyPair{KeyID: keyID, PrivateKey: priv, PublicKey: pub}, nil
}

// PrivateKeyBase64 returns the base64 encoding of the 32-byte seed (not the
// 64-byte expanded private key ed25519.PrivateKey carries internally).
func (k *KeyPair) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.PrivateKey.Seed())
}

// PublicKeyBase64 returns the base64 encoding of the 32-byte public key.
func (k *KeyPair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.PublicKey)
}

// ParsePrivateKey decodes a base64-encoded 32-byte seed into the full
// ed25519.PrivateKey, matching the EUNOMIA_SIGNING_KEY environment variable
// format.
func ParsePrivateKey(seedB64 string) (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, &Error{Kind: ErrBadKey, Message: fmt.Sprintf("invalid base64 seed: %v", err)}
	}
	if len(seed) != ed25519.SeedSize {
		return nil, &Error{Kind: ErrBadKey, Message: fmt.Sprintf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))}
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// ParsePublicKey decodes a base64-encoded 32-byte Ed25519 public key.
func ParsePublicKey(pubB64 string) (ed25519.PublicKey, error) {
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return nil, &Error{Kind: ErrBadKey, Message: fmt.Sprintf("invalid base64 public key: %v", err)}
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, &Error{Kind: ErrBadKey, Message: fmt.Sprintf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))}
	}
	return ed25519.PublicKey(pub), nil
}
