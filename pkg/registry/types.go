package registry

import "time"

// OCI media types for policy bundle artifacts.
const (
	MediaTypeManifest  = "application/vnd.eunomia.bundle.manifest.v1+json"
	MediaTypeLayer     = "application/vnd.eunomia.bundle.layer.v1.tar+gzip"
	MediaTypeConfig    = "application/vnd.eunomia.bundle.config.v1+json"
	MediaTypeSignature = "application/vnd.eunomia.bundle.signature.v1+json"
)

// Descriptor identifies one content-addressed blob or manifest the way the
// OCI Distribution spec does: media type, digest and size.
type Descriptor struct {
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
}

// ociManifest is the wire shape of the manifest document pushed/pulled from
// the registry: one config blob (the canonical manifest JSON) and one layer
// (the bundle tarball).
type ociManifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     string       `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// Tag is one tag reported by the registry's tag-list endpoint, with the
// registry's own pushed-at timestamp used to break SemVer ties.
type Tag struct {
	Name     string
	PushedAt time.Time
}
