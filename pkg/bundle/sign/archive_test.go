package sign

import (
	"path/filepath"
	"testing"
)

func TestWriteArchiveReadArchiveRoundTrip(t *testing.T) {
	kp, err := Generate("key-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b := testBundle(t)
	sb := NewSigner(kp).Sign(b, nil)

	path := filepath.Join(t.TempDir(), b.FileName())
	if err := WriteArchive(sb, path); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	loaded, err := ReadArchive(path)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	verifier := NewVerifier().Trust(kp.KeyID, kp.PublicKey)
	if err := verifier.Verify(loaded); err != nil {
		t.Fatalf("verify round-tripped signed bundle: %v", err)
	}
}
