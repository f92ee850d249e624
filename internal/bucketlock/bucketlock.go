// Package bucketlock implements one lock word per hash bucket: an atomic
// try-lock with no blocking and no per-operation unlock. Per spec.md §5 /
// §9.2 this is a deliberate simplification — a claimed bucket stays
// claimed until ResetAll runs between passes, converting mutual exclusion
// into at-most-one-writer-per-bucket-per-pass.
package bucketlock

import "sync/atomic"

const lockEntry = -1

// Locks holds one lock word per bucket.
type Locks struct {
	words []atomic.Int32
}

// New returns Locks for numBuckets buckets, all initially unclaimed.
func New(numBuckets uint32) *Locks {
	return &Locks{words: make([]atomic.Int32, numBuckets)}
}

// TryLock attempts to claim bucket. Returns true iff the previous value
// was not already lockEntry — i.e. this call is the one that claimed it.
// A caller that loses the race must abort with no side effects and let
// the external driver retry the whole operation on the next pass.
func (l *Locks) TryLock(bucket uint32) bool {
	prev := l.words[bucket].Swap(lockEntry)
	return prev != lockEntry
}

// ResetAll clears every lock word. Run once between passes by the driver;
// never call this concurrently with TryLock.
func (l *Locks) ResetAll() {
	for i := range l.words {
		l.words[i].Store(0)
	}
}

// NumBuckets returns the number of lock words.
func (l *Locks) NumBuckets() uint32 {
	return uint32(len(l.words))
}
