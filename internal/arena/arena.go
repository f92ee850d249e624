// Package arena implements the fixed-capacity voxel-block pool: a
// preallocated slab of blocks managed as an atomic free-stack (the spec's
// "heap"/"heapCounter"). It is the volumetric-engine analogue of the
// teacher's SlabAllocator/SlabPool, sized once and never grown.
package arena

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by Consume when the free stack is empty.
var ErrExhausted = errors.New("arena: exhausted")

// ErrIllegalBlockIndex is returned by Release when blockIdx is out of range.
var ErrIllegalBlockIndex = errors.New("arena: illegal block index")

// Arena is a fixed pool of numBlocks block indices, handed out via Consume
// and returned via Release. heapCounter is the count of currently free
// blocks; heap[0:heapCounter] holds their indices. Both are safe for
// concurrent use by many callers within a single pass.
type Arena struct {
	numBlocks uint32

	heap []uint32 // free-list storage, pre-sized to numBlocks

	// heapCounter is a count, not a stack-top index: heap[0:heapCounter]
	// are free. This resolves spec.md's §9.1 appendHeap ambiguity without
	// an off-by-one (see DESIGN.md / SPEC_FULL.md Open Questions #1).
	heapCounter atomic.Uint32
}

// New allocates an Arena with all numBlocks indices initially free.
func New(numBlocks uint32) *Arena {
	a := &Arena{
		numBlocks: numBlocks,
		heap:      make([]uint32, numBlocks),
	}
	a.reset()
	return a
}

func (a *Arena) reset() {
	for i := range a.heap {
		a.heap[i] = uint32(i)
	}
	a.heapCounter.Store(a.numBlocks)
}

// Reset reinitializes the free stack to fully-free. Not safe to call
// concurrently with Consume/Release.
func (a *Arena) Reset() {
	a.reset()
}

// NumBlocks returns the arena's fixed capacity.
func (a *Arena) NumBlocks() uint32 {
	return a.numBlocks
}

// FreeCount returns the number of currently free blocks.
func (a *Arena) FreeCount() uint32 {
	return a.heapCounter.Load()
}

// Consume pops one free block index from the stack. Returns ErrExhausted
// if the pool is empty; callers must not treat the zero value as valid in
// that case.
func (a *Arena) Consume() (uint32, error) {
	for {
		cur := a.heapCounter.Load()
		if cur == 0 {
			return 0, ErrExhausted
		}
		if a.heapCounter.CompareAndSwap(cur, cur-1) {
			return a.heap[cur-1], nil
		}
	}
}

// Release pushes blockIdx back onto the free stack. Returns
// ErrIllegalBlockIndex if blockIdx is out of range, which indicates memory
// corruption upstream (spec.md §7).
func (a *Arena) Release(blockIdx uint32) error {
	if blockIdx >= a.numBlocks {
		return ErrIllegalBlockIndex
	}
	for {
		cur := a.heapCounter.Load()
		if cur >= a.numBlocks {
			return ErrIllegalBlockIndex
		}
		if a.heapCounter.CompareAndSwap(cur, cur+1) {
			a.heap[cur] = blockIdx
			return nil
		}
	}
}
