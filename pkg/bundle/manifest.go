package bundle

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// ManifestPolicyEntry is one policy's entry in the canonical manifest. The
// digest is over the policy's source bytes alone, not the whole Policy
// record, so metadata-only edits (author list, description) never change
// the manifest digest.
type ManifestPolicyEntry struct {
	Package string `json:"package"`
	Digest  string `json:"digest"`
	Size    int    `json:"size"`
}

// Manifest is the deterministic, signable view of a Bundle. Field order in
// the emitted JSON matches §6 of the spec exactly: it is load-bearing for
// cross-platform digest reproducibility, so BuildManifest and
// CanonicalBytes never delegate to the default struct-tag-driven encoder for
// top-level field order — they build the object by hand.
type Manifest struct {
	Name      string
	Version   string
	CreatedAt time.Time
	GitCommit string // empty means omitted
	Policies  []ManifestPolicyEntry
	Metadata  map[string]string
}

// BuildManifest derives the canonical Manifest from a Bundle. Policy entries
// are sorted by package name ascending regardless of the order policies were
// added to the Builder.
func BuildManifest(b *Bundle) *Manifest {
	m := &Manifest{
		Name:      b.Name,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		GitCommit: b.GitCommit,
		Metadata:  b.Metadata,
	}
	for _, name := range b.SortedPackageNames() {
		p := b.Policies[name]
		sum := sha256.Sum256([]byte(p.Source))
		m.Policies = append(m.Policies, ManifestPolicyEntry{
			Package: name,
			Digest:  "sha256:" + hex.EncodeToString(sum[:]),
			Size:    len(p.Source),
		})
	}
	return m
}

// CanonicalBytes renders the manifest as the exact JSON bytes that are
// digested and signed: UTF-8, no trailing whitespace, keys in the order
// name/version/created_at/git_commit/policies/metadata, metadata keys
// sorted ascending, policies already sorted by package.
func (m *Manifest) CanonicalBytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString(`"name":`)
	writeJSONString(&buf, m.Name)
	buf.WriteByte(',')

	buf.WriteString(`"version":`)
	writeJSONString(&buf, m.Version)
	buf.WriteByte(',')

	buf.WriteString(`"created_at":`)
	writeJSONString(&buf, m.CreatedAt.UTC().Format(time.RFC3339))
	buf.WriteByte(',')

	if m.GitCommit != "" {
		buf.WriteString(`"git_commit":`)
		writeJSONString(&buf, m.GitCommit)
		buf.WriteByte(',')
	}

	buf.WriteString(`"policies":[`)
	for i, p := range m.Policies {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		buf.WriteString(`"package":`)
		writeJSONString(&buf, p.Package)
		buf.WriteString(`,"digest":`)
		writeJSONString(&buf, p.Digest)
		buf.WriteString(`,"size":`)
		buf.WriteString(itoa(p.Size))
		buf.WriteByte('}')
	}
	buf.WriteString(`],`)

	buf.WriteString(`"metadata":{`)
	keys := make([]string, 0, len(m.Metadata))
	for k := range m.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, m.Metadata[k])
	}
	buf.WriteByte('}')

	buf.WriteByte('}')
	return buf.Bytes()
}

// Digest returns the hex-lowercase SHA-256 of CanonicalBytes.
func (m *Manifest) Digest() string {
	sum := sha256.Sum256(m.CanonicalBytes())
	return hex.EncodeToString(sum[:])
}

// writeJSONString writes s as a JSON string literal using the standard
// library's encoder, which already produces the escaping rules the
// canonical format requires. Encoder.Encode always appends a trailing
// newline, so it is written to a scratch buffer and trimmed rather than
// polluting buf's byte-exact output.
func writeJSONString(buf *bytes.Buffer, s string) {
	var scratch bytes.Buffer
	enc := json.NewEncoder(&scratch)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	buf.Write(bytes.TrimRight(scratch.Bytes(), "\n"))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
