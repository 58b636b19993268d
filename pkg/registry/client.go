package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/metrics"
	"github.com/eunomia-sh/eunomia/pkg/telemetry/tracing"
)

// retryPolicy matches the spec's idempotent-GET/HEAD backoff: base 200ms,
// factor 2, capped at 5s, up to 5 attempts.
var retryPolicy = struct {
	base   time.Duration
	factor float64
	cap    time.Duration
	max    int
}{base: 200 * time.Millisecond, factor: 2, cap: 5 * time.Second, max: 5}

// Client is an OCI Distribution v2 client specialized for eunomia bundles.
type Client struct {
	baseURL    string
	namespace  string
	httpClient *http.Client
	auth       Authenticator
	cache      *Cache
	metrics    *metrics.Collector
}

// SetMetrics attaches a metrics collector that Push and Pull report bundle
// operation counters, durations and cache hit/miss counts through. Optional;
// a Client with no collector attached skips metrics recording entirely.
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// NewClient constructs a registry Client. baseURL is the registry's root
// (e.g. "https://registry.example.com"); namespace prefixes every
// repository path.
func NewClient(baseURL, namespace string, auth Authenticator, cache *Cache) *Client {
	if auth == nil {
		auth = NoAuth{}
	}
	return &Client{
		baseURL:    baseURL,
		namespace:  namespace,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		auth:       auth,
		cache:      cache,
	}
}

func (c *Client) repoPath(service string) string {
	if c.namespace == "" {
		return service
	}
	return c.namespace + "/" + service
}

// Push uploads sb's config blob, layer blob and manifest to the registry,
// tagged with sb.Bundle.Version.
func (c *Client) Push(ctx context.Context, sb *sign.SignedBundle) (desc *Descriptor, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "registry.push")
	defer span.End()
	tracing.SetBundleAttributes(span, sb.Bundle.Name, sb.Bundle.Version, "")
	start := time.Now()
	var sizeBytes int
	defer func() {
		result := "success"
		if err != nil {
			tracing.SetErrorAttributes(span, err, "push_failed")
			result = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordBundleOperation(sb.Bundle.Name, "push", result, time.Since(start), sizeBytes)
		}
	}()

	manifest := bundle.BuildManifest(sb.Bundle)
	configBytes := manifest.CanonicalBytes()
	configDesc := descriptorFor(MediaTypeConfig, configBytes)

	tmpPath, err := writeTempArchive(sb)
	if err != nil {
		return nil, err
	}
	defer removeTemp(tmpPath)
	layerBytes, err := readFile(tmpPath)
	if err != nil {
		return nil, err
	}
	layerDesc := descriptorFor(MediaTypeLayer, layerBytes)
	sizeBytes = len(layerBytes)

	if err := c.uploadBlob(ctx, sb.Bundle.Name, configDesc, configBytes); err != nil {
		return nil, err
	}
	if err := c.uploadBlob(ctx, sb.Bundle.Name, layerDesc, layerBytes); err != nil {
		return nil, err
	}

	om := ociManifest{
		SchemaVersion: 2,
		MediaType:     MediaTypeManifest,
		Config:        configDesc,
		Layers:        []Descriptor{layerDesc},
	}
	manifestBytes, err := json.Marshal(om)
	if err != nil {
		return nil, &Error{Kind: ErrManifestPushFailed, Message: "marshal OCI manifest", Cause: err}
	}
	manifestDesc := descriptorFor(MediaTypeManifest, manifestBytes)

	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL, c.repoPath(sb.Bundle.Name), sb.Bundle.Version)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(manifestBytes))
	if err != nil {
		return nil, &Error{Kind: ErrManifestPushFailed, Message: "build manifest push request", Cause: err}
	}
	req.Header.Set("Content-Type", MediaTypeManifest)
	if _, err := c.do(ctx, req, false); err != nil {
		return nil, &Error{Kind: ErrManifestPushFailed, Message: "push manifest", Cause: err}
	}

	return &manifestDesc, nil
}

// Pull resolves q against the registry's tag list, then returns the signed
// bundle for that version — from the local cache when the cached digest
// still matches the remote HEAD, otherwise fetched and cached.
func (c *Client) Pull(ctx context.Context, service string, q VersionQuery) (sb *sign.SignedBundle, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "registry.pull")
	defer span.End()
	start := time.Now()
	cacheHit := false
	var sizeBytes int
	defer func() {
		if sb != nil {
			tracing.SetBundleAttributes(span, sb.Bundle.Name, sb.Bundle.Version, "")
		}
		tracing.SetCacheAttributes(span, cacheHit, "registry-pull-cache")
		result := "success"
		if err != nil {
			tracing.SetErrorAttributes(span, err, "pull_failed")
			result = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordBundleOperation(service, "pull", result, time.Since(start), sizeBytes)
			if cacheHit {
				c.metrics.RecordCacheHit("registry-pull-cache")
			} else {
				c.metrics.RecordCacheMiss("registry-pull-cache")
			}
		}
	}()

	version, err := c.Resolve(ctx, service, q)
	if err != nil {
		return nil, err
	}
	reference := service + ":" + version

	mu := c.cache.Lock(reference)
	mu.Lock()
	defer mu.Unlock()

	manifestDigest, err := c.headManifestDigest(ctx, service, version)
	if err != nil {
		return nil, err
	}

	if entry, ok, cerr := c.cache.Get(reference); cerr != nil {
		return nil, cerr
	} else if ok && entry.ManifestDigest == manifestDigest {
		cacheHit = true
		cached, cerr := loadCachedSignedBundle(entry.BlobPath)
		if cerr != nil {
			return nil, cerr
		}
		return cached, nil
	}

	fetched, blob, err := c.fetchSignedBundle(ctx, service, version)
	if err != nil {
		return nil, err
	}
	sizeBytes = len(blob)
	actualDigest := bundle.BuildManifest(fetched.Bundle).Digest()
	if actualDigest != manifestDigest {
		return nil, &Error{Kind: ErrChecksumMismatch, Expected: manifestDigest, Actual: actualDigest}
	}
	if _, err := c.cache.Put(reference, actualDigest, blob, true); err != nil {
		return nil, err
	}
	return fetched, nil
}

// Exists reports whether service:version has a manifest in the registry.
func (c *Client) Exists(ctx context.Context, service, version string) (bool, error) {
	_, err := c.headManifestDigest(ctx, service, version)
	if err != nil {
		if re, ok := err.(*Error); ok && re.Kind == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListTags returns every tag known for service.
func (c *Client) ListTags(ctx context.Context, service string) ([]Tag, error) {
	url := fmt.Sprintf("%s/v2/%s/tags/list", c.baseURL, c.repoPath(service))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: ErrHTTP, Message: "build tags list request", Cause: err}
	}
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Name string   `json:"name"`
		Tags []string `json:"tags"`
		// PushedAt maps tag name -> RFC3339 timestamp; not part of the
		// base Distribution spec but reported by registries that extend
		// it (used only to break SemVer ties).
		PushedAt map[string]time.Time `json:"pushed_at,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{Kind: ErrHTTP, Message: "decode tags list", Cause: err}
	}

	tags := make([]Tag, 0, len(body.Tags))
	for _, name := range body.Tags {
		tags = append(tags, Tag{Name: name, PushedAt: body.PushedAt[name]})
	}
	return tags, nil
}

// Resolve applies q against the registry's current tag list for service.
func (c *Client) Resolve(ctx context.Context, service string, q VersionQuery) (string, error) {
	if q.Kind == QueryExact {
		return q.Exact, nil
	}
	tags, err := c.ListTags(ctx, service)
	if err != nil {
		return "", err
	}
	return Resolve(q, tags)
}

func (c *Client) headManifestDigest(ctx context.Context, service, version string) (string, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL, c.repoPath(service), version)
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", &Error{Kind: ErrHTTP, Message: "build manifest head request", Cause: err}
	}
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	digest := resp.Header.Get("Docker-Content-Digest")
	if digest == "" {
		return "", &Error{Kind: ErrHTTP, Message: "registry did not return a content digest"}
	}
	return digest, nil
}

func (c *Client) fetchSignedBundle(ctx context.Context, service, version string) (*sign.SignedBundle, []byte, error) {
	manifestURL := fmt.Sprintf("%s/v2/%s/manifests/%s", c.baseURL, c.repoPath(service), version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, nil, &Error{Kind: ErrHTTP, Message: "build manifest get request", Cause: err}
	}
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var om ociManifest
	if err := json.NewDecoder(resp.Body).Decode(&om); err != nil {
		return nil, nil, &Error{Kind: ErrHTTP, Message: "decode OCI manifest", Cause: err}
	}
	if len(om.Layers) == 0 {
		return nil, nil, &Error{Kind: ErrHTTP, Message: "manifest has no layers"}
	}

	layerBytes, err := c.fetchBlob(ctx, service, om.Layers[0])
	if err != nil {
		return nil, nil, err
	}

	tmpPath, err := writeTempBlob(layerBytes)
	if err != nil {
		return nil, nil, err
	}
	defer removeTemp(tmpPath)

	sb, err := sign.ReadArchive(tmpPath)
	if err != nil {
		return nil, nil, &Error{Kind: ErrHTTP, Message: "read pulled bundle archive", Cause: err}
	}
	return sb, layerBytes, nil
}

func (c *Client) fetchBlob(ctx context.Context, service string, desc Descriptor) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/%s/blobs/%s", c.baseURL, c.repoPath(service), desc.Digest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: ErrHTTP, Message: "build blob get request", Cause: err}
	}
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: ErrHTTP, Message: "read blob body", Cause: err}
	}
	actual := "sha256:" + sha256hex(data)
	if actual != desc.Digest {
		return nil, &Error{Kind: ErrChecksumMismatch, Expected: desc.Digest, Actual: actual}
	}
	return data, nil
}

// uploadBlob performs the two-step POST-then-PUT blob upload keyed by
// digest. Uploads are not retried by default, matching the spec's "PUT/POST
// not retried by default".
func (c *Client) uploadBlob(ctx context.Context, service string, desc Descriptor, data []byte) error {
	startURL := fmt.Sprintf("%s/v2/%s/blobs/uploads/", c.baseURL, c.repoPath(service))
	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, nil)
	if err != nil {
		return &Error{Kind: ErrUploadFailed, Message: "build upload start request", Cause: err}
	}
	startResp, err := c.do(ctx, startReq, false)
	if err != nil {
		return err
	}
	location := startResp.Header.Get("Location")
	startResp.Body.Close()
	if location == "" {
		return &Error{Kind: ErrUploadFailed, Message: "registry did not return an upload location"}
	}

	putURL := location
	if strings.Contains(location, "?") {
		putURL = location + "&digest=" + desc.Digest
	} else {
		putURL = location + "?digest=" + desc.Digest
	}
	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, bytes.NewReader(data))
	if err != nil {
		return &Error{Kind: ErrUploadFailed, Message: "build upload put request", Cause: err}
	}
	putReq.Header.Set("Content-Type", "application/octet-stream")
	if _, err := c.do(ctx, putReq, false); err != nil {
		return &Error{Kind: ErrUploadFailed, Message: "upload blob", Cause: err}
	}
	return nil
}

// do executes req, attaching auth, and retries per retryPolicy when
// retryable is true and the response indicates a transient failure. On a
// 401 it forces one auth refresh before surfacing the error.
func (c *Client) do(ctx context.Context, req *http.Request, retryable bool) (*http.Response, error) {
	var lastErr error
	attempts := 1
	if retryable {
		attempts = retryPolicy.max
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		if err := c.auth.Authenticate(ctx, req); err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &Error{Kind: ErrConnectionFailed, Message: "request failed", Cause: err}
			if retryable {
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			if err := c.auth.ForceRefresh(ctx); err != nil {
				return nil, &Error{Kind: ErrAuthenticationFailed, Message: "forced refresh failed", Cause: err}
			}
			if err := c.auth.Authenticate(ctx, req); err != nil {
				return nil, err
			}
			resp, err = c.httpClient.Do(req)
			if err != nil {
				return nil, &Error{Kind: ErrConnectionFailed, Message: "retry after auth refresh failed", Cause: err}
			}
			if resp.StatusCode == http.StatusUnauthorized {
				resp.Body.Close()
				return nil, &Error{Kind: ErrAuthenticationFailed, Message: "authentication failed after refresh"}
			}
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, &Error{Kind: ErrNotFound, Message: req.URL.String()}
		}

		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &Error{Kind: ErrHTTP, Status: resp.StatusCode, Message: string(body)}
			if retryable && (lastErr.(*Error)).IsRetryable() {
				continue
			}
			return nil, lastErr
		}

		return resp, nil
	}
	return nil, lastErr
}

func sleepBackoff(ctx context.Context, attempt int) error {
	d := retryPolicy.base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * retryPolicy.factor)
		if d > retryPolicy.cap {
			d = retryPolicy.cap
			break
		}
	}
	// Jitter avoids a thundering herd of synchronized retries against the
	// same registry.
	jitter := time.Duration(rand.Int63n(int64(d) / 4 + 1))
	select {
	case <-time.After(d + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func descriptorFor(mediaType string, data []byte) Descriptor {
	return Descriptor{
		MediaType: mediaType,
		Digest:    "sha256:" + sha256hex(data),
		Size:      int64(len(data)),
	}
}

func sha256hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Close releases the client's cache resources.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}
