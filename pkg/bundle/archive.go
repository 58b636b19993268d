package bundle

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

const (
	manifestEntryName   = "manifest.json"
	signaturesEntryName = "signatures.json"
	policiesDir         = "policies"
)

// diskManifest is the JSON shape persisted as manifest.json: the canonical
// manifest fields plus the few bits (Manifest.Digest, Bundle.CreatedAt as a
// real timestamp) needed to reconstruct a Bundle exactly. It intentionally
// mirrors Manifest's field order for readability, though on-disk field
// order has no digest implications — only CanonicalBytes does.
type diskManifest struct {
	Name           string                `json:"name"`
	Version        string                `json:"version"`
	CreatedAt      time.Time             `json:"created_at"`
	GitCommit      string                `json:"git_commit,omitempty"`
	Policies       []ManifestPolicyEntry `json:"policies"`
	Metadata       map[string]string     `json:"metadata"`
	ManifestDigest string                `json:"manifest_digest"`
}

// Write serialises the bundle to a gzipped tar archive at path, containing
// manifest.json and one policies/<package>.rego entry per policy.
func (b *Bundle) Write(path string) error {
	return b.WriteWithExtra(path, nil)
}

// WriteWithExtra serialises the bundle the same way Write does, plus any
// additional named entries — used by the sign package to embed
// signatures.json without this package needing to know the Envelope type
// (which itself depends on Bundle), avoiding an import cycle.
func (b *Bundle) WriteWithExtra(path string, extra map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle archive: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	dm := diskManifest{
		Name:           b.Name,
		Version:        b.Version,
		CreatedAt:      b.CreatedAt,
		GitCommit:      b.GitCommit,
		Policies:       BuildManifest(b).Policies,
		Metadata:       b.Metadata,
		ManifestDigest: b.ManifestDigest,
	}
	manifestJSON, err := json.MarshalIndent(dm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeTarEntry(tw, manifestEntryName, manifestJSON); err != nil {
		return err
	}

	for _, name := range b.SortedPackageNames() {
		p := b.Policies[name]
		if err := writeTarEntry(tw, packageFileName(name), []byte(p.Source)); err != nil {
			return err
		}
	}

	for name, data := range extra {
		if err := writeTarEntry(tw, name, data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now().UTC(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header for %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}

// FromFile reconstructs a Bundle from an archive produced by Write. The
// reconstructed Bundle's Policy values carry only Source, PackageName and
// FilePath (the archive entry name) — Policy.CreatedAt/Description/Authors
// are not persisted in the on-disk format and are zero-valued, matching the
// round-trip law's "modulo non-persisted in-memory fields" carve-out.
func FromFile(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)

	var dm *diskManifest
	sources := make(map[string]string)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
		}

		switch {
		case hdr.Name == manifestEntryName:
			var m diskManifest
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("unmarshal manifest.json: %w", err)
			}
			dm = &m
		case strings.HasPrefix(hdr.Name, policiesDir+"/") && strings.HasSuffix(hdr.Name, ".rego"):
			pkg := strings.TrimSuffix(strings.TrimPrefix(hdr.Name, policiesDir+"/"), ".rego")
			sources[pkg] = string(data)
		}
	}

	if dm == nil {
		return nil, fmt.Errorf("bundle archive %s has no manifest.json entry", path)
	}

	policies := make(map[string]*ast.Policy, len(dm.Policies))
	for _, entry := range dm.Policies {
		source, ok := sources[entry.Package]
		if !ok {
			return nil, fmt.Errorf("bundle archive missing policy layer for package %q", entry.Package)
		}
		policies[entry.Package] = &ast.Policy{
			PackageName: entry.Package,
			Source:      source,
			FilePath:    packageFileName(entry.Package),
		}
	}

	b := &Bundle{
		Name:           dm.Name,
		Version:        dm.Version,
		CreatedAt:      dm.CreatedAt,
		GitCommit:      dm.GitCommit,
		Policies:       policies,
		Metadata:       dm.Metadata,
		ManifestDigest: dm.ManifestDigest,
	}
	return b, nil
}

// ReadExtraEntry reads one named entry (e.g. "signatures.json") out of a
// bundle archive without constructing a Bundle, returning ok=false if the
// archive has no such entry.
func ReadExtraEntry(path, name string) (data []byte, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open bundle archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, false, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Name != name {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, false, fmt.Errorf("read tar entry %s: %w", name, err)
		}
		return data, true, nil
	}
}
