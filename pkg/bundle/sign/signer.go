package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
)

// Signer holds an Ed25519 private key and key ID and signs bundle
// manifests.
type Signer struct {
	KeyID      string
	PrivateKey ed25519.PrivateKey
}

// NewSigner returns a Signer for the given key pair.
func NewSigner(kp *KeyPair) *Signer {
	return &Signer{KeyID: kp.KeyID, PrivateKey: kp.PrivateKey}
}

// Sign signs b's canonical manifest bytes and returns a SignedBundle. If
// existing is non-nil, its existing signatures are preserved (co-signing accumulates,
// per the spec's resolution of the open question); otherwise a fresh
// envelope is created.
func (s *Signer) Sign(b *bundle.Bundle, existing *Envelope) *SignedBundle {
	manifest := bundle.BuildManifest(b)
	sig := ed25519.Sign(s.PrivateKey, manifest.CanonicalBytes())

	env := Envelope{}
	if existing != nil {
		env.Signatures = append(env.Signatures, existing.Signatures...)
	}
	env.Signatures = append(env.Signatures, Signature{
		Algorithm: "ed25519",
		KeyID:     s.KeyID,
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  time.Now().UTC(),
	})

	return &SignedBundle{Bundle: b, Envelope: env}
}
