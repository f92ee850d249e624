package engine

import "errors"

// Structural error kinds from spec.md §7. TransientContention is
// deliberately not among these: it is an ordinary retry signal (an
// AllocResult/DeleteResult value), never surfaced as an error.
var (
	// ErrChainBoundExceeded: a collision chain walk exhausted
	// hashMaxCollisionLinkedListSize without resolving. Indicates the
	// table is undersized for the workload.
	ErrChainBoundExceeded = errors.New("engine: chain bound exceeded")

	// ErrArenaExhausted: the block arena had no free blocks when an
	// allocation needed one. The frame's allocation is dropped.
	ErrArenaExhausted = errors.New("engine: arena exhausted")

	// ErrIllegalBlockIndex: a release targeted a block index outside
	// the arena's range. Indicates upstream memory corruption.
	ErrIllegalBlockIndex = errors.New("engine: illegal block index")
)
