package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Manager holds one fixed-capacity, TTL-expiring partition per Category.
// All methods are safe for concurrent use. Two concurrent stores of the
// same key are last-write-wins.
type Manager struct {
	// mu is held shared by Get/Set and exclusively by Clear, so a clear is
	// never observed half done.
	mu         sync.RWMutex
	partitions map[Category]*expirable.LRU[string, Entry]
	configs    map[Category]PartitionConfig
}

// PartitionStats describes the current state of one partition.
type PartitionStats struct {
	Category Category      `json:"category"`
	Entries  int           `json:"entries"`
	Capacity int           `json:"capacity"`
	TTL      time.Duration `json:"ttl"`
}

// NewManager creates a cache manager. Categories missing from configs use
// DefaultPartitions. Each partition starts an expiry goroutine that runs
// until the process exits, so long-lived programs should share one
// manager rather than create one per request.
func NewManager(configs map[Category]PartitionConfig) (*Manager, error) {
	defaults := DefaultPartitions()
	m := &Manager{
		partitions: make(map[Category]*expirable.LRU[string, Entry], len(Categories)),
		configs:    make(map[Category]PartitionConfig, len(Categories)),
	}

	for _, cat := range Categories {
		cfg, ok := configs[cat]
		if !ok {
			cfg = defaults[cat]
		}
		if cfg.Capacity <= 0 {
			return nil, fmt.Errorf("partition %s: capacity must be > 0 (got %d)", cat, cfg.Capacity)
		}
		if cfg.TTL <= 0 {
			return nil, fmt.Errorf("partition %s: ttl must be > 0 (got %s)", cat, cfg.TTL)
		}
		m.configs[cat] = cfg
		m.partitions[cat] = expirable.NewLRU[string, Entry](cfg.Capacity, nil, cfg.TTL)
	}

	return m, nil
}

// Get retrieves a live entry. Expired entries are reported as misses.
func (m *Manager) Get(key CacheKey) (Entry, bool) {
	cat := key.Category()
	digest := key.Digest()

	m.mu.RLock()
	entry, ok := m.partitions[cat].Get(digest)
	m.mu.RUnlock()

	if !ok || entry.IsExpired() {
		CacheMisses.WithLabelValues(string(cat)).Inc()
		return Entry{}, false
	}

	CacheHits.WithLabelValues(string(cat)).Inc()
	return entry, true
}

// Set stores a decoded body in the key's partition, evicting the least
// recently used entry when the partition is full.
func (m *Manager) Set(key CacheKey, value any) Entry {
	cat := key.Category()
	now := time.Now()
	entry := Entry{
		Value:    value,
		Category: cat,
		CachedAt: now,
		Expires:  now.Add(m.configs[cat].TTL),
	}

	m.mu.RLock()
	p := m.partitions[cat]
	p.Add(key.Digest(), entry)
	size := p.Len()
	m.mu.RUnlock()

	CacheEntries.WithLabelValues(string(cat)).Set(float64(size))
	return entry
}

// Clear empties every partition.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cat := range Categories {
		m.partitions[cat].Purge()
		CacheEntries.WithLabelValues(string(cat)).Set(0)
	}
	CacheClears.Inc()
}

// Len returns the number of entries in one partition.
func (m *Manager) Len(cat Category) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.partitions[cat]
	if !ok {
		return 0
	}
	return p.Len()
}

// Stats returns a snapshot of all partitions in Categories order.
func (m *Manager) Stats() []PartitionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]PartitionStats, 0, len(Categories))
	for _, cat := range Categories {
		stats = append(stats, PartitionStats{
			Category: cat,
			Entries:  m.partitions[cat].Len(),
			Capacity: m.configs[cat].Capacity,
			TTL:      m.configs[cat].TTL,
		})
	}
	return stats
}
