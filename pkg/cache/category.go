package cache

import (
	"strings"
	"time"
)

// Category selects the cache partition and TTL for an endpoint.
type Category string

const (
	// CategoryMetadata covers schema, search-area and enum endpoints.
	CategoryMetadata Category = "metadata"

	// CategoryStatistics covers /stats endpoints.
	CategoryStatistics Category = "statistics"

	// CategoryStudy covers single-study lookups (/studies/NCT...).
	CategoryStudy Category = "study"

	// CategorySearch covers search result pages and everything else.
	CategorySearch Category = "search"
)

// Categories lists every partition in a fixed order.
var Categories = []Category{CategoryMetadata, CategoryStatistics, CategoryStudy, CategorySearch}

// CategoryForEndpoint classifies an endpoint path.
func CategoryForEndpoint(endpoint string) Category {
	switch {
	case strings.Contains(endpoint, "metadata"),
		strings.Contains(endpoint, "search-areas"),
		strings.Contains(endpoint, "enums"):
		return CategoryMetadata
	case strings.Contains(endpoint, "stats"):
		return CategoryStatistics
	case strings.Contains(endpoint, "/studies/NCT"):
		return CategoryStudy
	default:
		return CategorySearch
	}
}

// PartitionConfig bounds one partition.
type PartitionConfig struct {
	// Capacity is the maximum number of entries (least recently used are evicted)
	Capacity int `yaml:"capacity"`

	// TTL is how long an entry stays valid after it is stored
	TTL time.Duration `yaml:"ttl"`
}

// DefaultPartitions returns the standard partition bounds: schema and
// statistics change rarely, search pages are the most volatile.
func DefaultPartitions() map[Category]PartitionConfig {
	return map[Category]PartitionConfig{
		CategoryMetadata:   {Capacity: 100, TTL: 24 * time.Hour},
		CategoryStatistics: {Capacity: 200, TTL: 24 * time.Hour},
		CategoryStudy:      {Capacity: 1000, TTL: 6 * time.Hour},
		CategorySearch:     {Capacity: 1000, TTL: 1 * time.Hour},
	}
}
