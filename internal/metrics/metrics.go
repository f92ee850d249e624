// Package metrics collects the allocation/contention/chain-length/arena
// counters a running engine needs, grounded on the teacher's atomic
// CacheStats/V3CacheStats blocks (internal/cache/cache_engine_v2.go,
// cache_engine_v3.go). A bounded per-bucket contention sampler keys its
// map by an xxhash of the block position — a different hash than the
// Teschner spatial hash in internal/coord, used purely for sampler-key
// bucketing so this debug path doesn't perturb block addressing.
package metrics

import (
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/minio/enterprise/internal/coord"
)

// Stats is the lock-free counter block recorded by one HashEngine.
type Stats struct {
	BlocksAllocated   atomic.Int64
	BlocksReleased    atomic.Int64
	AllocContended    atomic.Int64
	DeleteContended   atomic.Int64
	ChainBoundHits    atomic.Int64
	ArenaExhaustions  atomic.Int64
	IllegalBlockIndex atomic.Int64
	VoxelsIntegrated  atomic.Int64
	CompactionRuns    atomic.Int64
	LastLiveBlocks    atomic.Int64
}

// Snapshot is a point-in-time copy of Stats safe to hand to callers.
type Snapshot struct {
	BlocksAllocated   int64
	BlocksReleased    int64
	AllocContended    int64
	DeleteContended   int64
	ChainBoundHits    int64
	ArenaExhaustions  int64
	IllegalBlockIndex int64
	VoxelsIntegrated  int64
	CompactionRuns    int64
	LastLiveBlocks    int64
}

// Load returns a consistent-enough snapshot (individually atomic field
// reads, not a single transaction — matching the relaxed consistency the
// rest of this engine already assumes within a pass).
func (s *Stats) Load() Snapshot {
	return Snapshot{
		BlocksAllocated:   s.BlocksAllocated.Load(),
		BlocksReleased:    s.BlocksReleased.Load(),
		AllocContended:    s.AllocContended.Load(),
		DeleteContended:   s.DeleteContended.Load(),
		ChainBoundHits:    s.ChainBoundHits.Load(),
		ArenaExhaustions:  s.ArenaExhaustions.Load(),
		IllegalBlockIndex: s.IllegalBlockIndex.Load(),
		VoxelsIntegrated:  s.VoxelsIntegrated.Load(),
		CompactionRuns:    s.CompactionRuns.Load(),
		LastLiveBlocks:    s.LastLiveBlocks.Load(),
	}
}

// sampleCapacity bounds the contention sampler map; once full, the
// position recorded first is dropped rather than the map growing without
// limit (spec.md Non-goals:
// no dynamic growth applies to debug bookkeeping too).
const sampleCapacity = 4096

// sample is one bucket position's recorded contention count, keyed by an
// xxhash of the position so the map lookup stays O(1) regardless of
// Vec3i's component range.
type sample struct {
	pos   coord.Vec3i
	count int64
}

// ContentionSampler records which bucket positions most often lose the
// tryLock race, for operators to find hot spots. Bounded size, evicted
// oldest-first once full.
type ContentionSampler struct {
	mu      sync.Mutex
	order   []uint64
	samples map[uint64]*sample
}

// NewContentionSampler returns an empty sampler.
func NewContentionSampler() *ContentionSampler {
	return &ContentionSampler{samples: make(map[uint64]*sample, sampleCapacity)}
}

func sampleKey(pos coord.Vec3i) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(pos[0]))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(pos[1]))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(pos[2]))
	return xxhash.Sum64(buf[:])
}

// Record increments the contention count for pos's sampler key.
func (c *ContentionSampler) Record(pos coord.Vec3i) {
	key := sampleKey(pos)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.samples[key]; !exists {
		if len(c.order) >= sampleCapacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.samples, oldest)
		}
		c.order = append(c.order, key)
		c.samples[key] = &sample{pos: pos}
	}
	c.samples[key].count++
}

// Len returns the number of distinct positions currently tracked.
func (c *ContentionSampler) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// ContentionSample is one entry of a Top report.
type ContentionSample struct {
	Pos   coord.Vec3i
	Count int64
}

// Top returns up to n (pos, count) pairs ordered by count descending, for
// operators to find the hottest contended bucket positions. Not a ranking
// API with stability guarantees across calls beyond the count ordering —
// this is a debug aid.
func (c *ContentionSampler) Top(n int) []ContentionSample {
	c.mu.Lock()
	out := make([]ContentionSample, 0, len(c.samples))
	for _, s := range c.samples {
		out = append(out, ContentionSample{Pos: s.pos, Count: s.count})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if n < len(out) {
		out = out[:n]
	}
	return out
}
