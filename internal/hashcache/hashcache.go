// Package hashcache persists the per-index map of relative path to content hash.
// An entry exists only for a file whose current chunks were embedded and stored.
package hashcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the cache file inside an index state directory.
const FileName = "hashes.json"

// Cache is a path → sha256 map backed by a flat JSON object on disk.
type Cache struct {
	mu     sync.RWMutex
	path   string
	hashes map[string]string
}

// HashContent returns the lowercase hex sha256 of data.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Load reads dir/hashes.json. A missing file yields an empty cache.
func Load(dir string) (*Cache, error) {
	c := &Cache{
		path:   filepath.Join(dir, FileName),
		hashes: make(map[string]string),
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read hash cache: %w", err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.hashes); err != nil {
		return nil, fmt.Errorf("decode hash cache %s: %w", c.path, err)
	}
	if c.hashes == nil {
		c.hashes = make(map[string]string)
	}
	return c, nil
}

// Get returns the stored hash for path.
func (c *Cache) Get(path string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.hashes[path]
	return h, ok
}

// Set records hash for path in memory. Call Save to persist.
func (c *Cache) Set(path, hash string) {
	c.mu.Lock()
	c.hashes[path] = hash
	c.mu.Unlock()
}

// Delete removes path in memory. Call Save to persist.
func (c *Cache) Delete(path string) {
	c.mu.Lock()
	delete(c.hashes, path)
	c.mu.Unlock()
}

// Len returns the number of cached paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

// Paths returns cached paths in sorted order.
func (c *Cache) Paths() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.hashes))
	for p := range c.hashes {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Reset drops every entry in memory.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.hashes = make(map[string]string)
	c.mu.Unlock()
}

// Save writes the cache through a temp file and rename so readers never see a torn file.
func (c *Cache) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.hashes, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode hash cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write hash cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace hash cache: %w", err)
	}
	return nil
}
