package loader

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/milk9111/tileworld/component"
	"github.com/milk9111/tileworld/levels"
)

// Entry is a loaded sprite: its metadata and sheet.
type Entry struct {
	Texture component.Texture
	Meta    levels.SpriteMeta
}

type AssetKey struct {
	Kind levels.Kind
	ID   string
}

func (k AssetKey) String() string { return string(k.Kind) + ":" + k.ID }

// Cache holds loaded assets for the life of the process. Entries are
// written once and never replaced.
type Cache struct {
	mu      deadlock.RWMutex
	entries map[AssetKey]Entry
}

func NewCache() *Cache {
	return &Cache{entries: make(map[AssetKey]Entry)}
}

func (c *Cache) Get(key AssetKey) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put stores e unless key is already present. It reports whether e was stored.
func (c *Cache) Put(key AssetKey, e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = e
	return true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
