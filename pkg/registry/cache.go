package registry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CacheEntry mirrors one row of the cache's sqlite index. The on-disk blob
// at BlobPath is the source of truth; the index exists purely so eviction
// sweeps and startup reconciliation do not need a full directory walk.
type CacheEntry struct {
	Reference      string // "service:version"
	ManifestDigest string
	BlobPath       string
	SizeBytes      int64
	PulledAt       time.Time
	LastAccessedAt time.Time
	Verified       bool
}

// Cache is the registry client's local, content-addressed store. Reads are
// lock-free after the initial open; writes are serialized per cache key so
// at most one download of a given bundle is ever in flight.
type Cache struct {
	dir     string
	maxBytes int64
	db      *sql.DB

	keyMu sync.Map // reference -> *sync.Mutex
}

// OpenCache opens (creating if necessary) the cache directory and its
// sqlite index at <dir>/index.db.
func OpenCache(dir string, maxBytes int64) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Kind: ErrCache, Message: "create cache directory", Cause: err}
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, &Error{Kind: ErrCache, Message: "open cache index", Cause: err}
	}
	db.SetMaxOpenConns(1) // sqlite file-level writer serialization

	c := &Cache{dir: dir, maxBytes: maxBytes, db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := c.reconcile(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	reference        TEXT PRIMARY KEY,
	manifest_digest  TEXT NOT NULL,
	blob_path        TEXT NOT NULL,
	size_bytes       INTEGER NOT NULL,
	pulled_at        TEXT NOT NULL,
	last_accessed_at TEXT NOT NULL,
	verified         INTEGER NOT NULL
);`
	_, err := c.db.Exec(schema)
	if err != nil {
		return &Error{Kind: ErrCache, Message: "migrate cache schema", Cause: err}
	}
	return nil
}

// reconcile drops any index row whose blob is missing from disk, rebuilding
// consistency after an unclean shutdown. The blobs themselves remain the
// source of truth.
func (c *Cache) reconcile() error {
	rows, err := c.db.Query(`SELECT reference, blob_path FROM cache_entries`)
	if err != nil {
		return &Error{Kind: ErrCache, Message: "reconcile cache index", Cause: err}
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var ref, blobPath string
		if err := rows.Scan(&ref, &blobPath); err != nil {
			return &Error{Kind: ErrCache, Message: "scan cache index row", Cause: err}
		}
		if _, err := os.Stat(blobPath); err != nil {
			stale = append(stale, ref)
		}
	}
	for _, ref := range stale {
		c.db.Exec(`DELETE FROM cache_entries WHERE reference = ?`, ref)
	}
	return nil
}

// Lock returns the per-key mutex for reference, creating it on first use.
// Callers must hold it for the duration of a download to enforce
// at-most-one-concurrent-download-per-key.
func (c *Cache) Lock(reference string) *sync.Mutex {
	v, _ := c.keyMu.LoadOrStore(reference, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Get returns the cache entry for reference, if present, and bumps its
// LastAccessedAt.
func (c *Cache) Get(reference string) (*CacheEntry, bool, error) {
	row := c.db.QueryRow(`SELECT reference, manifest_digest, blob_path, size_bytes, pulled_at, last_accessed_at, verified FROM cache_entries WHERE reference = ?`, reference)
	var e CacheEntry
	var pulledAt, lastAccessed string
	var verified int
	if err := row.Scan(&e.Reference, &e.ManifestDigest, &e.BlobPath, &e.SizeBytes, &pulledAt, &lastAccessed, &verified); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, &Error{Kind: ErrCache, Message: "query cache entry", Cause: err}
	}
	e.PulledAt, _ = time.Parse(time.RFC3339Nano, pulledAt)
	e.LastAccessedAt, _ = time.Parse(time.RFC3339Nano, lastAccessed)
	e.Verified = verified != 0

	if _, err := os.Stat(e.BlobPath); err != nil {
		c.db.Exec(`DELETE FROM cache_entries WHERE reference = ?`, reference)
		return nil, false, nil
	}

	now := time.Now().UTC()
	c.db.Exec(`UPDATE cache_entries SET last_accessed_at = ? WHERE reference = ?`, now.Format(time.RFC3339Nano), reference)
	e.LastAccessedAt = now
	return &e, true, nil
}

// Put writes blob atomically (temp file + rename) under the cache
// directory and records an index row for reference.
func (c *Cache) Put(reference, manifestDigest string, blob []byte, verified bool) (*CacheEntry, error) {
	blobPath := filepath.Join(c.dir, sanitizeReference(reference)+".tar.gz")
	tmp := blobPath + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return nil, &Error{Kind: ErrCache, Message: "write cache blob", Cause: err}
	}
	if err := os.Rename(tmp, blobPath); err != nil {
		os.Remove(tmp)
		return nil, &Error{Kind: ErrCache, Message: "rename cache blob into place", Cause: err}
	}

	now := time.Now().UTC()
	e := &CacheEntry{
		Reference:      reference,
		ManifestDigest: manifestDigest,
		BlobPath:       blobPath,
		SizeBytes:      int64(len(blob)),
		PulledAt:       now,
		LastAccessedAt: now,
		Verified:       verified,
	}

	_, err := c.db.Exec(`
		INSERT INTO cache_entries (reference, manifest_digest, blob_path, size_bytes, pulled_at, last_accessed_at, verified)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reference) DO UPDATE SET
			manifest_digest = excluded.manifest_digest,
			blob_path = excluded.blob_path,
			size_bytes = excluded.size_bytes,
			pulled_at = excluded.pulled_at,
			last_accessed_at = excluded.last_accessed_at,
			verified = excluded.verified
	`, e.Reference, e.ManifestDigest, e.BlobPath, e.SizeBytes, e.PulledAt.Format(time.RFC3339Nano), e.LastAccessedAt.Format(time.RFC3339Nano), boolToInt(e.Verified))
	if err != nil {
		return nil, &Error{Kind: ErrCache, Message: "index cache entry", Cause: err}
	}

	if err := c.evictIfOverCap(); err != nil {
		return nil, err
	}
	return e, nil
}

// evictIfOverCap removes entries by ascending LastAccessedAt until the
// cache's total size is at or under maxBytes.
func (c *Cache) evictIfOverCap() error {
	if c.maxBytes <= 0 {
		return nil
	}
	rows, err := c.db.Query(`SELECT reference, blob_path, size_bytes, last_accessed_at FROM cache_entries`)
	if err != nil {
		return &Error{Kind: ErrCache, Message: "list cache entries for eviction", Cause: err}
	}
	type row struct {
		reference, blobPath  string
		size                 int64
		lastAccessed         time.Time
	}
	var entries []row
	var total int64
	for rows.Next() {
		var r row
		var lastAccessedStr string
		if err := rows.Scan(&r.reference, &r.blobPath, &r.size, &lastAccessedStr); err != nil {
			rows.Close()
			return &Error{Kind: ErrCache, Message: "scan cache entry for eviction", Cause: err}
		}
		r.lastAccessed, _ = time.Parse(time.RFC3339Nano, lastAccessedStr)
		entries = append(entries, r)
		total += r.size
	}
	rows.Close()

	if total <= c.maxBytes {
		return nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].lastAccessed.Before(entries[j].lastAccessed) })
	for _, e := range entries {
		if total <= c.maxBytes {
			break
		}
		os.Remove(e.blobPath)
		c.db.Exec(`DELETE FROM cache_entries WHERE reference = ?`, e.reference)
		total -= e.size
	}
	return nil
}

// Close closes the cache's index database.
func (c *Cache) Close() error { return c.db.Close() }

func sanitizeReference(ref string) string {
	out := make([]byte, 0, len(ref))
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		if ch == ':' || ch == '/' {
			out = append(out, '_')
			continue
		}
		out = append(out, ch)
	}
	return string(out)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
