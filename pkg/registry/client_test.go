package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
	"github.com/eunomia-sh/eunomia/pkg/policy/ast"
)

// fakeRegistry is a minimal in-memory OCI Distribution v2 server sufficient
// to exercise Client.Push/Pull/Exists/ListTags end to end.
type fakeRegistry struct {
	mu        sync.Mutex
	blobs     map[string][]byte            // digest -> bytes
	manifests map[string]map[string][]byte // service -> tag -> manifest json
	headCalls int
	getCalls  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		blobs:     make(map[string][]byte),
		manifests: make(map[string]map[string][]byte),
	}
}

func (f *fakeRegistry) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/blobs/uploads/"):
			w.Header().Set("Location", r.URL.Path+"upload-1")
			w.WriteHeader(http.StatusAccepted)

		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/blobs/uploads/upload-1"):
			data, _ := io.ReadAll(r.Body)
			digest := r.URL.Query().Get("digest")
			f.blobs[digest] = data
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/manifests/"):
			data, _ := io.ReadAll(r.Body)
			parts := strings.Split(r.URL.Path, "/")
			service, tag := parts[2], parts[len(parts)-1]
			if f.manifests[service] == nil {
				f.manifests[service] = make(map[string][]byte)
			}
			f.manifests[service][tag] = data
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodHead && strings.Contains(r.URL.Path, "/manifests/"):
			f.headCalls++
			parts := strings.Split(r.URL.Path, "/")
			service, tag := parts[2], parts[len(parts)-1]
			data, ok := f.manifests[service][tag]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Docker-Content-Digest", "sha256:"+sha256hex(data))
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/manifests/"):
			f.getCalls++
			parts := strings.Split(r.URL.Path, "/")
			service, tag := parts[2], parts[len(parts)-1]
			data, ok := f.manifests[service][tag]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Docker-Content-Digest", "sha256:"+sha256hex(data))
			w.Write(data)

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/blobs/"):
			parts := strings.Split(r.URL.Path, "/")
			digest := parts[len(parts)-1]
			data, ok := f.blobs[digest]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tags/list"):
			parts := strings.Split(r.URL.Path, "/")
			service := parts[2]
			tags := make([]string, 0)
			for tag := range f.manifests[service] {
				tags = append(tags, tag)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"name": service, "tags": tags})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testSignedBundle(t *testing.T) (*sign.SignedBundle, *sign.KeyPair) {
	t.Helper()
	b, err := bundle.NewBuilder("users", "1.0.0").AddPolicy(&ast.Policy{
		PackageName: "users.authz",
		Source:      "package users.authz\ndefault allow := false\n",
	}).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	kp, err := sign.Generate("key-1")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	sb := sign.NewSigner(kp).Sign(b, nil)
	return sb, kp
}

func TestClientPushPullRoundTrip(t *testing.T) {
	fr := newFakeRegistry()
	srv := httptest.NewServer(fr.handler())
	defer srv.Close()

	cache, err := OpenCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	client := NewClient(srv.URL, "", NoAuth{}, cache)
	sb, kp := testSignedBundle(t)

	ctx := context.Background()
	if _, err := client.Push(ctx, sb); err != nil {
		t.Fatalf("push: %v", err)
	}

	pulled, err := client.Pull(ctx, "users", Exact("1.0.0"))
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	verifier := sign.NewVerifier().Trust(kp.KeyID, kp.PublicKey)
	if err := verifier.Verify(pulled); err != nil {
		t.Fatalf("verify pulled bundle: %v", err)
	}
	if pulled.Bundle.ManifestDigest != sb.Bundle.ManifestDigest {
		t.Errorf("manifest digest mismatch: got %q want %q", pulled.Bundle.ManifestDigest, sb.Bundle.ManifestDigest)
	}

	exists, err := client.Exists(ctx, "users", "1.0.0")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Error("expected users:1.0.0 to exist after push")
	}
}

func TestClientPullCacheHitSkipsLayerDownload(t *testing.T) {
	fr := newFakeRegistry()
	srv := httptest.NewServer(fr.handler())
	defer srv.Close()

	cache, err := OpenCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	client := NewClient(srv.URL, "", NoAuth{}, cache)
	sb, _ := testSignedBundle(t)

	ctx := context.Background()
	if _, err := client.Push(ctx, sb); err != nil {
		t.Fatalf("push: %v", err)
	}

	if _, err := client.Pull(ctx, "users", Exact("1.0.0")); err != nil {
		t.Fatalf("first pull: %v", err)
	}
	getCallsAfterFirst := fr.getCalls

	if _, err := client.Pull(ctx, "users", Exact("1.0.0")); err != nil {
		t.Fatalf("second pull: %v", err)
	}
	if fr.getCalls != getCallsAfterFirst {
		t.Errorf("expected second pull to perform no manifest/layer GET, got %d new GET calls", fr.getCalls-getCallsAfterFirst)
	}
	if fr.headCalls == 0 {
		t.Error("expected at least one HEAD call across both pulls")
	}
}

func TestClientResolveLatest(t *testing.T) {
	fr := newFakeRegistry()
	srv := httptest.NewServer(fr.handler())
	defer srv.Close()

	cache, err := OpenCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	client := NewClient(srv.URL, "", NoAuth{}, cache)
	ctx := context.Background()

	for _, v := range []string{"1.0.0", "1.2.0", "2.0.0"} {
		b, err := bundle.NewBuilder("users", v).AddPolicy(&ast.Policy{
			PackageName: "users.authz",
			Source:      "package users.authz\ndefault allow := false\n",
		}).Compile()
		if err != nil {
			t.Fatalf("compile %s: %v", v, err)
		}
		kp, _ := sign.Generate("key-1")
		sb := sign.NewSigner(kp).Sign(b, nil)
		if _, err := client.Push(ctx, sb); err != nil {
			t.Fatalf("push %s: %v", v, err)
		}
	}

	got, err := client.Resolve(ctx, "users", Latest())
	if err != nil {
		t.Fatalf("resolve latest: %v", err)
	}
	if got != "2.0.0" {
		t.Errorf("resolve latest = %q, want 2.0.0", got)
	}
}
