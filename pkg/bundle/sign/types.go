package sign

import (
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
)

// Signature is one detached Ed25519 signature over a bundle's canonical
// manifest bytes.
type Signature struct {
	Algorithm string    `json:"algorithm"`
	KeyID     string    `json:"key_id"`
	Signature string    `json:"signature"` // base64 of the 64-byte Ed25519 signature
	SignedAt  time.Time `json:"signed_at"`
}

// Envelope is the ordered sequence of signatures a bundle carries. A bundle
// may be co-signed by multiple parties; signing always appends, it never
// replaces an existing entry.
type Envelope struct {
	Signatures []Signature `json:"signatures"`
}

// SignedBundle pairs a compiled Bundle with its signature envelope. The
// envelope signs the bundle's canonical manifest bytes, never the tarball,
// so re-packaging an identical manifest never requires re-signing.
type SignedBundle struct {
	Bundle   *bundle.Bundle
	Envelope Envelope
}
