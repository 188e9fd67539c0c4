package models

import "time"

// CacheEntry is a single cached value with its lifetime bookkeeping.
type CacheEntry[V any] struct {
	Key        string    `json:"key"`
	Value      V         `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	HitCount   int64     `json:"hit_count"`
	TTLSeconds int64     `json:"ttl_seconds"`
}

// Expired reports whether now is past the entry's expiry.
func (e CacheEntry[V]) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// CacheStats reports cache performance metrics for the fast tier.
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	CurrentSize int     `json:"current_size"`
	HitRate     float64 `json:"hit_rate"`
}

// ComputeHitRate returns hits/(hits+misses), or 0 when there were no lookups.
func ComputeHitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
