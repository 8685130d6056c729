// Package shard partitions a URL pair corpus into bounded work files.
package shard

import (
	"fmt"
	"strconv"

	"github.com/perfgo/vrtgo/model"
)

// Limits bounds the size and number of shards.
type Limits struct {
	MinPerShard int // Minimum records per shard
	MaxPerShard int // Maximum records per shard
	MaxShards   int // Parallelism ceiling
}

// DefaultLimits returns the default shard limits.
func DefaultLimits() Limits {
	return Limits{
		MinPerShard: 25,
		MaxPerShard: 50,
		MaxShards:   256,
	}
}

// Validate checks that the limits are usable.
func (l Limits) Validate() error {
	if l.MinPerShard < 1 {
		return fmt.Errorf("minimum records per shard must be positive, got %d", l.MinPerShard)
	}
	if l.MaxPerShard < l.MinPerShard {
		return fmt.Errorf("maximum records per shard (%d) is below the minimum (%d)", l.MaxPerShard, l.MinPerShard)
	}
	if l.MaxShards < 1 {
		return fmt.Errorf("maximum shard count must be positive, got %d", l.MaxShards)
	}
	return nil
}

// Shard is an ordered slice of the corpus with its identifier.
type Shard struct {
	ID      string
	Records []model.URLPair
}

// Count returns the number of shards for n records.
//
// It starts from the smallest count that keeps shards at the minimum size,
// capped by the parallelism ceiling. When that makes shards too large, the
// count grows to respect the maximum size (and may then exceed the ceiling).
// When it leaves any shard below the minimum, the count shrinks so every
// shard holds at least the minimum, provided the maximum still holds.
func Count(n int, l Limits) int {
	if n <= 0 {
		return 0
	}

	count := min(ceilDiv(n, l.MinPerShard), l.MaxShards)
	if ceilDiv(n, count) > l.MaxPerShard {
		return ceilDiv(n, l.MaxPerShard)
	}
	if n/count < l.MinPerShard {
		if c := max(1, n/l.MinPerShard); ceilDiv(n, c) <= l.MaxPerShard {
			return c
		}
	}
	return count
}

// Plan splits records into shards, preserving order. Shard sizes differ by
// at most one, larger shards first, and shard ids are "1", "2", ...
func Plan(records []model.URLPair, l Limits) []Shard {
	count := Count(len(records), l)
	if count == 0 {
		return []Shard{}
	}

	base := len(records) / count
	extra := len(records) % count

	shards := make([]Shard, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		size := base
		if i < extra {
			size++
		}
		shards = append(shards, Shard{
			ID:      strconv.Itoa(i + 1),
			Records: records[start : start+size],
		})
		start += size
	}

	return shards
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
