package sign

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
)

// Verifier holds the set of public keys trusted to sign bundles, keyed by
// key ID.
type Verifier struct {
	keys       map[string]ed25519.PublicKey
	RequireAll bool // false (default): at least one valid signature suffices.
}

// NewVerifier returns a Verifier trusting no keys; add them with Trust.
func NewVerifier() *Verifier {
	return &Verifier{keys: make(map[string]ed25519.PublicKey)}
}

// Trust registers a public key under keyID.
func (v *Verifier) Trust(keyID string, pub ed25519.PublicKey) *Verifier {
	v.keys[keyID] = pub
	return v
}

// WithRequireAll switches verification policy to unanimous: every signature
// in the envelope must verify, instead of at least one.
func (v *Verifier) WithRequireAll(requireAll bool) *Verifier {
	v.RequireAll = requireAll
	return v
}

// Verify recomputes sb.Bundle's manifest digest and checks its signature
// envelope against the trusted key set. By default at least one signature
// must verify; RequireAll demands unanimity.
func (v *Verifier) Verify(sb *SignedBundle) error {
	if len(sb.Envelope.Signatures) == 0 {
		return &Error{Kind: ErrBadSignature, Message: "signature envelope is empty"}
	}

	manifest := bundle.BuildManifest(sb.Bundle)
	canonical := manifest.CanonicalBytes()
	expectedDigest := manifest.Digest()
	if sb.Bundle.ManifestDigest != "" && sb.Bundle.ManifestDigest != expectedDigest {
		return &Error{Kind: ErrManifestMismatch, Message: fmt.Sprintf("bundle manifest_digest %q does not match recomputed digest %q", sb.Bundle.ManifestDigest, expectedDigest)}
	}

	validCount := 0
	for _, sig := range sb.Envelope.Signatures {
		pub, ok := v.keys[sig.KeyID]
		if !ok {
			err := &Error{Kind: ErrUnknownKeyID, KeyID: sig.KeyID, Message: "no trusted public key registered for this key id"}
			if v.RequireAll {
				return err
			}
			continue
		}

		raw, err := base64.StdEncoding.DecodeString(sig.Signature)
		if err != nil {
			err := &Error{Kind: ErrBadSignature, KeyID: sig.KeyID, Message: fmt.Sprintf("invalid base64 signature: %v", err)}
			if v.RequireAll {
				return err
			}
			continue
		}

		if !ed25519.Verify(pub, canonical, raw) {
			err := &Error{Kind: ErrBadSignature, KeyID: sig.KeyID, Message: "ed25519 verification failed"}
			if v.RequireAll {
				return err
			}
			continue
		}

		validCount++
	}

	if validCount == 0 {
		return &Error{Kind: ErrBadSignature, Message: "no signature in the envelope verified against a trusted key"}
	}
	if v.RequireAll && validCount != len(sb.Envelope.Signatures) {
		return &Error{Kind: ErrBadSignature, Message: "require_all is set but not every signature verified"}
	}
	return nil
}
