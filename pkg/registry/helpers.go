package registry

import (
	"os"

	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
)

// writeTempArchive serialises sb to a temporary on-disk archive so the
// existing tar/gzip writer in pkg/bundle/sign can be reused for the bytes
// pushed as the registry layer blob.
func writeTempArchive(sb *sign.SignedBundle) (string, error) {
	f, err := os.CreateTemp("", "eunomia-push-*.tar.gz")
	if err != nil {
		return "", &Error{Kind: ErrUploadFailed, Message: "create temp archive", Cause: err}
	}
	path := f.Name()
	f.Close()
	if err := sign.WriteArchive(sb, path); err != nil {
		os.Remove(path)
		return "", &Error{Kind: ErrUploadFailed, Message: "write temp archive", Cause: err}
	}
	return path, nil
}

// writeTempBlob writes a pulled layer blob to a temp file so sign.ReadArchive
// (which operates on a path, matching the rest of this codebase's archive
// API) can parse it without a second in-memory archive reader.
func writeTempBlob(data []byte) (string, error) {
	f, err := os.CreateTemp("", "eunomia-pull-*.tar.gz")
	if err != nil {
		return "", &Error{Kind: ErrCache, Message: "create temp blob", Cause: err}
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", &Error{Kind: ErrCache, Message: "write temp blob", Cause: err}
	}
	return f.Name(), nil
}

func removeTemp(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrUploadFailed, Message: "read temp archive", Cause: err}
	}
	return data, nil
}

// loadCachedSignedBundle reads a cache hit directly off disk, skipping the
// registry round trip entirely beyond the HEAD digest check already
// performed by the caller.
func loadCachedSignedBundle(blobPath string) (*sign.SignedBundle, error) {
	sb, err := sign.ReadArchive(blobPath)
	if err != nil {
		return nil, &Error{Kind: ErrCache, Message: "read cached bundle archive", Cause: err}
	}
	return sb, nil
}
