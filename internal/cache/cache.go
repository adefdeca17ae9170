// internal/cache/cache.go
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// NotFound is stored for items whose page carried no title.
const NotFound = "Title Not Found"

// DefaultSize bounds the number of names kept in memory.
const DefaultSize = 4096

// ItemNames maps item ids to human-readable names.
//
// Names are only used for log lines and tables, so a lost or corrupt cache
// file never blocks a hunt.
type ItemNames struct {
	store  *lru.Cache[string, string]
	mu     sync.Mutex
	hits   uint64
	misses uint64
	dirty  bool
}

// NewItemNames creates an empty cache holding up to size names.
func NewItemNames(size int) *ItemNames {
	if size <= 0 {
		size = DefaultSize
	}
	store, err := lru.New[string, string](size)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	return &ItemNames{store: store}
}

// Load replaces the cache contents with the JSON object at path.
// A missing file leaves the cache empty; a corrupt one is logged and ignored.
func (c *ItemNames) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("No item name cache found, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read item name cache: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Item name cache is corrupt, starting empty")
		return nil
	}

	c.store.Purge()
	for id, name := range names {
		c.store.Add(id, name)
	}
	log.Debug().Str("path", path).Int("names", len(names)).Msg("Loaded item name cache")
	return nil
}

// Save writes the cache to path as a JSON object.
func (c *ItemNames) Save(path string) error {
	data, err := json.MarshalIndent(c.All(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode item name cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write item name cache: %w", err)
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	log.Debug().Str("path", path).Int("names", c.store.Len()).Msg("Saved item name cache")
	return nil
}

// Name returns the cached name for id, or id itself when unknown.
func (c *ItemNames) Name(id string) string {
	name, ok := c.store.Get(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.misses++
		return id
	}
	c.hits++
	return name
}

// Has reports whether a name is cached for id.
func (c *ItemNames) Has(id string) bool {
	return c.store.Contains(id)
}

// Set stores name for id. An empty name is recorded as NotFound.
func (c *ItemNames) Set(id, name string) {
	if name == "" {
		name = NotFound
	}
	if old, ok := c.store.Peek(id); ok && old == name {
		return
	}
	c.store.Add(id, name)
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Dirty reports whether names were added since the last Load or Save.
func (c *ItemNames) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// All returns a copy of every cached name.
func (c *ItemNames) All() map[string]string {
	out := make(map[string]string, c.store.Len())
	for _, id := range c.store.Keys() {
		if name, ok := c.store.Peek(id); ok {
			out[id] = name
		}
	}
	return out
}

// IDs returns the cached ids in sorted order.
func (c *ItemNames) IDs() []string {
	ids := c.store.Keys()
	sort.Strings(ids)
	return ids
}

// Len returns the number of cached names.
func (c *ItemNames) Len() int { return c.store.Len() }

// Clear removes every name.
func (c *ItemNames) Clear() {
	c.store.Purge()
	c.mu.Lock()
	c.dirty = true
	c.hits, c.misses = 0, 0
	c.mu.Unlock()
	log.Debug().Msg("Item name cache cleared")
}

// Stats returns lookup statistics.
func (c *ItemNames) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := 0.0
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return map[string]interface{}{
		"entries":  c.store.Len(),
		"hits":     c.hits,
		"misses":   c.misses,
		"hit_rate": hitRate,
	}
}
