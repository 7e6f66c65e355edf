package driver

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"kiln/internal/diag"
	"kiln/internal/emit"
	"kiln/internal/source"
)

// Bump when UnitPayload changes shape; stale entries read as misses.
const diskCacheSchemaVersion uint16 = 1

// DiskCache persists per-unit lowering inventories keyed by the content
// hash of the declaration file. Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// UnitPayload is the cached inventory of one lowered unit: the symbols
// the module defined, sorted. Lowering is deterministic, so a hash hit
// with a different inventory means the toolchain and the cache disagree.
type UnitPayload struct {
	Schema uint16
	Unit   string

	Globals []string
	Funcs   []string
}

// OpenDiskCache initializes a disk cache at the standard user location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key source.Digest) string {
	return filepath.Join(c.dir, "units", hex.EncodeToString(key[:])+".mp")
}

// Put serializes and writes a payload, replacing atomically.
func (c *DiskCache) Put(key source.Digest, payload *UnitPayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload; a missing or stale-schema entry is a miss, not an
// error.
func (c *DiskCache) Get(key source.Digest, out *UnitPayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	if out.Schema != diskCacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the whole cache.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// payloadFor snapshots the symbol inventory of a module.
func payloadFor(m *emit.Module) *UnitPayload {
	p := &UnitPayload{
		Schema:  diskCacheSchemaVersion,
		Unit:    m.Name,
		Globals: make([]string, 0, len(m.Globals)),
		Funcs:   make([]string, 0, len(m.Funcs)),
	}
	for i := range m.Globals {
		p.Globals = append(p.Globals, m.Globals[i].Name)
	}
	for _, f := range m.Funcs {
		p.Funcs = append(p.Funcs, f.Name)
	}
	sort.Strings(p.Globals)
	sort.Strings(p.Funcs)
	return p
}

// checkCache compares a fresh lowering against the cached inventory for
// the same input hash and records the result. A mismatch is reported as
// cache skew but never fails the compilation.
func (d *Driver) checkCache(fileID source.FileID, m *emit.Module) {
	cache := d.opts.Cache
	if cache == nil {
		return
	}
	file := d.Files.Get(fileID)
	if file == nil {
		return
	}
	fresh := payloadFor(m)

	var cached UnitPayload
	hit, err := cache.Get(file.Hash, &cached)
	if err == nil && hit && !samePayload(&cached, fresh) {
		diag.ReportError(d.rep, diag.DriverCacheSkew, source.Span{File: fileID},
			"cached symbol inventory differs from fresh lowering of identical input")
	}
	if err := cache.Put(file.Hash, fresh); err != nil {
		diag.ReportError(d.rep, diag.DriverBadInput, source.Span{File: fileID},
			"cache write failed: "+err.Error())
	}
}

func samePayload(a, b *UnitPayload) bool {
	if a.Unit != b.Unit || len(a.Globals) != len(b.Globals) || len(a.Funcs) != len(b.Funcs) {
		return false
	}
	for i := range a.Globals {
		if a.Globals[i] != b.Globals[i] {
			return false
		}
	}
	for i := range a.Funcs {
		if a.Funcs[i] != b.Funcs[i] {
			return false
		}
	}
	return true
}
