package sign

import (
	"encoding/json"
	"fmt"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
)

const signaturesEntryName = "signatures.json"

// WriteArchive serialises sb to a gzipped tar archive at path, embedding the
// signature envelope as an in-tar signatures.json entry alongside the
// bundle's usual manifest.json and policy layers.
func WriteArchive(sb *SignedBundle, path string) error {
	envelopeJSON, err := json.MarshalIndent(sb.Envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal signature envelope: %w", err)
	}
	return sb.Bundle.WriteWithExtra(path, map[string][]byte{
		signaturesEntryName: envelopeJSON,
	})
}

// ReadArchive reconstructs a SignedBundle from an archive written by
// WriteArchive. It returns an error if the archive carries no
// signatures.json entry — an unsigned bundle archive is read with
// bundle.FromFile directly instead.
func ReadArchive(path string) (*SignedBundle, error) {
	b, err := bundle.FromFile(path)
	if err != nil {
		return nil, err
	}
	data, ok, err := bundle.ReadExtraEntry(path, signaturesEntryName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("bundle archive %s has no %s entry", path, signaturesEntryName)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal signatures.json: %w", err)
	}
	return &SignedBundle{Bundle: b, Envelope: env}, nil
}
