// Package hashtable implements the two-level spatial hash table: a
// numBuckets*bucketSize array of slots where each bucket's last slot
// doubles as the head of that bucket's overflow collision list. It is
// grounded directly on VoxelUtilHashSDF.h's getHashEntryForSDFBlockPos,
// allocBlock, deleteHashEntryElement, insertHashEntry and deleteHashEntry,
// with the concurrency shape (claim-or-abort, no per-op unlock) borrowed
// from the teacher's per-shard lock pattern in V3CacheShard/L1CacheShard.
package hashtable

import (
	"sync/atomic"

	"github.com/minio/enterprise/internal/arena"
	"github.com/minio/enterprise/internal/bucketlock"
	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/logging"
	"github.com/minio/enterprise/internal/metrics"
)

// Entry sentinels (spec.md §3).
const (
	FreeEntry int32 = -2
	LockEntry int32 = -1
	NoOffset  int32 = 0
)

// HashEntry is the caller-facing snapshot of one table slot.
type HashEntry struct {
	Pos    coord.Vec3i
	Ptr    int32
	Offset int32
}

func (e HashEntry) isFree() bool { return e.Ptr == FreeEntry }

// slot is the table's actual storage: one atomic word per field so Find
// can run lock-free against concurrent AllocBlock/Delete callers within a
// pass. Reads are not a single consistent snapshot (one independent load
// per field), matching the CUDA original's unsynchronized struct reads.
type slot struct {
	x, y, z atomic.Int32
	ptr     atomic.Int32
	offset  atomic.Int32
}

func (s *slot) load() HashEntry {
	return HashEntry{
		Pos:    coord.Vec3i{s.x.Load(), s.y.Load(), s.z.Load()},
		Ptr:    s.ptr.Load(),
		Offset: s.offset.Load(),
	}
}

func (s *slot) store(e HashEntry) {
	s.x.Store(e.Pos[0])
	s.y.Store(e.Pos[1])
	s.z.Store(e.Pos[2])
	s.ptr.Store(e.Ptr)
	s.offset.Store(e.Offset)
}

func (s *slot) reset() {
	s.store(HashEntry{Ptr: FreeEntry})
}

// Table is the fixed-capacity two-level hash table plus the arena and
// bucket locks it drives allocation/deletion through.
type Table struct {
	math       coord.Math
	bucketSize uint32
	numBuckets uint32
	maxChain   uint32

	slots []slot
	locks *bucketlock.Locks
	arena *arena.Arena

	// log and stats are optional diagnostics sinks for the
	// IllegalBlockIndex path (spec.md §7); nil is a valid, silent default
	// so tests can construct a Table without wiring either.
	log   *logging.Logger
	stats *metrics.Stats
}

// Params mirrors the slice of HashParams this table needs.
type Params struct {
	NumBuckets                 uint32
	BucketSize                 uint32 // spec.md constant, 20
	NumBlocks                  uint32
	VirtualVoxelSize           float32
	HashMaxCollisionListLength uint32

	// Log and Stats, if set, receive the IllegalBlockIndex diagnostic
	// when releaseBlock's arena.Release call reports a corrupted block
	// pointer. Both are optional.
	Log   *logging.Logger
	Stats *metrics.Stats
}

// New allocates a Table, its BucketLocks and its BlockArena together, all
// fixed-capacity per p (no dynamic growth — spec.md Non-goals).
func New(p Params) *Table {
	total := p.NumBuckets * p.BucketSize
	t := &Table{
		math:       coord.New(p.VirtualVoxelSize, p.NumBuckets),
		bucketSize: p.BucketSize,
		numBuckets: p.NumBuckets,
		maxChain:   p.HashMaxCollisionListLength,
		slots:      make([]slot, total),
		locks:      bucketlock.New(p.NumBuckets),
		arena:      arena.New(p.NumBlocks),
		log:        p.Log,
		stats:      p.Stats,
	}
	t.Reset()
	return t
}

// Reset clears every slot to FreeEntry, resets bucket locks and returns
// all blocks to the arena. Not safe to call concurrently with any other
// method (spec.md §6 Reset).
func (t *Table) Reset() {
	for i := range t.slots {
		t.slots[i].reset()
	}
	t.locks.ResetAll()
	t.arena.Reset()
}

// ResetLocks clears bucket locks between passes, per spec.md §5's
// "mutex cleared by external reset" discipline. Safe to call once all
// workers of the prior pass have returned (a barrier the driver enforces).
func (t *Table) ResetLocks() {
	t.locks.ResetAll()
}

// Arena exposes the underlying block arena (for stats/GC callers).
func (t *Table) Arena() *arena.Arena { return t.arena }

// Math exposes the coordinate math this table was built with.
func (t *Table) Math() coord.Math { return t.math }

func (t *Table) lastSlotOf(bucket uint32) uint32 {
	return (bucket+1)*t.bucketSize - 1
}

func (t *Table) isBucketLastSlot(i uint32) bool {
	return (i+1)%t.bucketSize == 0
}

func (t *Table) wrap(i int64) uint32 {
	n := int64(t.numBuckets * t.bucketSize)
	i %= n
	if i < 0 {
		i += n
	}
	return uint32(i)
}

// Find looks up pos: first the primary bucket's slots, then (bounded by
// maxChain) the overflow chain rooted at the bucket's last slot. Returns
// ok=false on miss, including when the chain bound is exceeded — a
// spec.md §4.4 "exceeding maxChain is reported as miss", not an error.
func (t *Table) Find(pos coord.Vec3i) (HashEntry, bool) {
	h := t.math.ComputeHash(pos)
	hp := h * t.bucketSize

	for j := uint32(0); j < t.bucketSize; j++ {
		e := t.slots[hp+j].load()
		if e.Pos == pos && !e.isFree() {
			return e, true
		}
	}

	i := t.lastSlotOf(h)
	for iter := uint32(0); iter < t.maxChain; iter++ {
		curr := t.slots[i].load()
		if curr.Pos == pos && !curr.isFree() {
			return curr, true
		}
		if curr.Offset == NoOffset {
			break
		}
		i = t.wrap(int64(t.lastSlotOf(h)) + int64(curr.Offset))
	}
	return HashEntry{Ptr: FreeEntry}, false
}

// AllocResult reports what an AllocBlock call did, for
// callers that want to distinguish "already allocated" from "lost the
// race, retry next pass" from "table exhausted".
type AllocResult int

const (
	// AllocAlreadyExists: pos already had a live entry; idempotent no-op.
	AllocAlreadyExists AllocResult = iota
	// AllocCreated: a new entry was inserted and a block consumed.
	AllocCreated
	// AllocContended: a tryLock lost a race; caller retries next pass.
	AllocContended
	// AllocChainExhausted: maxChain iterations found no free slot.
	AllocChainExhausted
	// AllocArenaExhausted: the arena had no free blocks.
	AllocArenaExhausted
)

// AllocBlock ensures pos has a live entry with an allocated block,
// following spec.md §4.5's three-phase insertion. It is idempotent on an
// existing entry and never blocks: a lost tryLock race returns
// AllocContended immediately with no side effects, and the external
// driver is expected to call AllocBlock(pos) again on the next pass.
func (t *Table) AllocBlock(pos coord.Vec3i) AllocResult {
	h := t.math.ComputeHash(pos)
	hp := h * t.bucketSize

	firstEmpty := int64(-1)
	for j := uint32(0); j < t.bucketSize; j++ {
		i := hp + j
		curr := t.slots[i].load()
		if curr.Pos == pos && !curr.isFree() {
			return AllocAlreadyExists
		}
		if firstEmpty == -1 && curr.isFree() {
			firstEmpty = int64(i)
		}
	}

	lastSlot := t.lastSlotOf(h)
	i := lastSlot
	for iter := uint32(0); iter < t.maxChain; iter++ {
		curr := t.slots[i].load()
		if curr.Pos == pos && !curr.isFree() {
			return AllocAlreadyExists
		}
		if curr.Offset == NoOffset {
			break
		}
		i = t.wrap(int64(lastSlot) + int64(curr.Offset))
	}

	if firstEmpty != -1 {
		if !t.locks.TryLock(h) {
			return AllocContended
		}
		blockIdx, err := t.arena.Consume()
		if err != nil {
			return AllocArenaExhausted
		}
		t.slots[firstEmpty].store(HashEntry{
			Pos:    pos,
			Offset: NoOffset,
			Ptr:    int32(blockIdx) * coord.VoxelsPerBlock,
		})
		return AllocCreated
	}

	// Primary bucket full: linear-probe forward from the bucket's last
	// slot, skipping indices that are themselves some other bucket's
	// last slot (spec.md invariant 7 / §9 "no chain head conflation").
	offset := int64(0)
	for iter := uint32(0); iter < t.maxChain; iter++ {
		offset++
		probe := t.wrap(int64(lastSlot) + offset)
		if t.isBucketLastSlot(probe) {
			continue
		}
		curr := t.slots[probe].load()
		if !curr.isFree() {
			continue
		}

		if !t.locks.TryLock(h) {
			return AllocContended
		}
		probeBucket := probe / t.bucketSize
		if !t.locks.TryLock(probeBucket) {
			return AllocContended
		}

		blockIdx, err := t.arena.Consume()
		if err != nil {
			return AllocArenaExhausted
		}
		oldHeadOffset := t.slots[lastSlot].offset.Load()
		t.slots[probe].store(HashEntry{
			Pos:    pos,
			Offset: oldHeadOffset,
			Ptr:    int32(blockIdx) * coord.VoxelsPerBlock,
		})
		t.slots[lastSlot].offset.Store(int32(offset))
		return AllocCreated
	}
	return AllocChainExhausted
}

// InsertEntry is the CAS-based insert-without-allocation used by
// streaming (VoxelUtilHashSDF.h's insertHashEntry): entry.Ptr must already
// be a valid arena pointer (or FreeEntry is meaningless here — the caller
// owns the block). Returns false if no free slot was found within
// maxChain, mirroring the original's "insert failed" diagnostic path.
func (t *Table) InsertEntry(entry HashEntry) bool {
	h := t.math.ComputeHash(entry.Pos)
	hp := h * t.bucketSize

	for j := uint32(0); j < t.bucketSize; j++ {
		i := hp + j
		if t.slots[i].ptr.CompareAndSwap(FreeEntry, LockEntry) {
			t.slots[i].store(entry)
			return true
		}
	}

	lastSlot := t.lastSlotOf(h)
	offset := int64(0)
	for iter := uint32(0); iter < t.maxChain; iter++ {
		offset++
		i := t.wrap(int64(lastSlot) + offset)
		if t.isBucketLastSlot(i) {
			continue
		}
		if t.slots[i].ptr.CompareAndSwap(FreeEntry, LockEntry) {
			oldOffset := t.slots[lastSlot].offset.Swap(int32(offset))
			entry.Offset = oldOffset
			t.slots[i].store(entry)
			return true
		}
	}
	return false
}

// DeleteResult distinguishes "deleted", "not found" and "contended".
type DeleteResult int

const (
	DeleteOK DeleteResult = iota
	DeleteNotFound
	DeleteContended
)

// DeleteHashEntryElement locates pos (primary bucket, then chain),
// releases its block back to the arena and removes the entry, using the
// "safer" re-link policy spec.md §4.6/§9.3 settles on: copy-successor-
// in-place only when the matched slot is the bucket's own last slot,
// otherwise patch the predecessor's Offset. A tryLock loss returns
// DeleteContended with no side effects; the caller retries next pass.
func (t *Table) DeleteHashEntryElement(pos coord.Vec3i) DeleteResult {
	h := t.math.ComputeHash(pos)
	hp := h * t.bucketSize
	lastSlot := t.lastSlotOf(h)

	for j := uint32(0); j < t.bucketSize; j++ {
		i := hp + j
		curr := t.slots[i].load()
		if curr.Pos != pos || curr.isFree() {
			continue
		}

		if curr.Offset != NoOffset && i == lastSlot {
			// i is the bucket's last slot, which doubles as the chain
			// head: collapse by copying the successor in place so the
			// chain stays reachable from the same head index.
			if !t.locks.TryLock(h) {
				return DeleteContended
			}
			nextIdx := t.wrap(int64(lastSlot) + int64(curr.Offset))
			next := t.slots[nextIdx].load()
			t.releaseBlock(curr)
			t.slots[i].store(next)
			t.slots[nextIdx].reset()
			return DeleteOK
		}

		// Ordinary primary-slot delete: non-last primary slots never
		// carry a chain (only the bucket's last slot is a chain head).
		if !t.locks.TryLock(h) {
			return DeleteContended
		}
		t.releaseAndReset(curr, i)
		return DeleteOK
	}

	// Chain traversal, tracking the predecessor slot index for re-linking.
	prevIdx := lastSlot
	i := t.wrap(int64(lastSlot) + int64(t.slots[lastSlot].offset.Load()))
	for iter := uint32(0); iter < t.maxChain; iter++ {
		curr := t.slots[i].load()
		if curr.Pos == pos && !curr.isFree() {
			if !t.locks.TryLock(h) {
				return DeleteContended
			}
			t.releaseBlock(curr)
			t.slots[i].reset()
			t.slots[prevIdx].offset.Store(curr.Offset)
			return DeleteOK
		}
		if curr.Offset == NoOffset {
			return DeleteNotFound
		}
		prevIdx = i
		i = t.wrap(int64(lastSlot) + int64(curr.Offset))
	}
	return DeleteNotFound
}

// DeleteEntryNoRelease removes pos from the table without returning its
// block to the arena (VoxelUtilHashSDF.h's deleteHashEntry, used by
// streaming when the caller takes ownership of the block itself).
func (t *Table) DeleteEntryNoRelease(pos coord.Vec3i) DeleteResult {
	h := t.math.ComputeHash(pos)
	hp := h * t.bucketSize
	lastSlot := t.lastSlotOf(h)

	for j := uint32(0); j < t.bucketSize; j++ {
		i := hp + j
		curr := t.slots[i].load()
		if curr.Pos != pos || curr.isFree() {
			continue
		}
		if curr.Offset != NoOffset && i == lastSlot {
			if !t.locks.TryLock(h) {
				return DeleteContended
			}
			nextIdx := t.wrap(int64(lastSlot) + int64(curr.Offset))
			next := t.slots[nextIdx].load()
			t.slots[i].store(next)
			t.slots[nextIdx].reset()
			return DeleteOK
		}
		if !t.locks.TryLock(h) {
			return DeleteContended
		}
		t.slots[i].reset()
		return DeleteOK
	}

	prevIdx := lastSlot
	i := t.wrap(int64(lastSlot) + int64(t.slots[lastSlot].offset.Load()))
	for iter := uint32(0); iter < t.maxChain; iter++ {
		curr := t.slots[i].load()
		if curr.Pos == pos && !curr.isFree() {
			if !t.locks.TryLock(h) {
				return DeleteContended
			}
			t.slots[i].reset()
			t.slots[prevIdx].offset.Store(curr.Offset)
			return DeleteOK
		}
		if curr.Offset == NoOffset {
			return DeleteNotFound
		}
		prevIdx = i
		i = t.wrap(int64(lastSlot) + int64(curr.Offset))
	}
	return DeleteNotFound
}

func (t *Table) releaseAndReset(curr HashEntry, slotIdx uint32) {
	t.releaseBlock(curr)
	t.slots[slotIdx].reset()
}

func (t *Table) releaseBlock(curr HashEntry) {
	blockIdx := uint32(curr.Ptr) / coord.VoxelsPerBlock
	if err := t.arena.Release(blockIdx); err != nil {
		// arena.ErrIllegalBlockIndex means corruption upstream (spec.md
		// §7); surface it instead of swallowing it.
		if t.stats != nil {
			t.stats.IllegalBlockIndex.Add(1)
		}
		if t.log != nil {
			t.log.IllegalBlockIndex(blockIdx, t.arena.NumBlocks())
		}
	}
}

// NumBuckets, BucketSize and NumSlots expose the table's fixed geometry.
func (t *Table) NumBuckets() uint32 { return t.numBuckets }
func (t *Table) BucketSize() uint32 { return t.bucketSize }
func (t *Table) NumSlots() uint32   { return uint32(len(t.slots)) }

// SlotAt returns a snapshot of slot i, for compaction and diagnostics.
func (t *Table) SlotAt(i uint32) HashEntry { return t.slots[i].load() }
