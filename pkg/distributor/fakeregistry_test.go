package distributor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// fakeOCIServer is a minimal in-memory OCI Distribution v2 server, just
// enough to let a real registry.Client push/pull through an httptest server
// in distributor tests without depending on a live registry.
type fakeOCIServer struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	manifests map[string]map[string][]byte
}

func newFakeOCIServer() *fakeOCIServer {
	return &fakeOCIServer{
		blobs:     make(map[string][]byte),
		manifests: make(map[string]map[string][]byte),
	}
}

func digestFor(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func (f *fakeOCIServer) handler() http.HandlerFunc {
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
			parts := strings.Split(r.URL.Path, "/")
			service, tag := parts[2], parts[len(parts)-1]
			data, ok := f.manifests[service][tag]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Docker-Content-Digest", digestFor(data))
			w.WriteHeader(http.StatusOK)

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/manifests/"):
			parts := strings.Split(r.URL.Path, "/")
			service, tag := parts[2], parts[len(parts)-1]
			data, ok := f.manifests[service][tag]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Docker-Content-Digest", digestFor(data))
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
