// Package compact implements the decide/scan/gather compactification pass
// that extracts live, in-frustum hash entries into a dense array for
// downstream consumers (spec.md §4.9). The prefix-scan step is delegated
// to a PrefixScan collaborator (internal/scan provides implementations)
// rather than implemented here, per
// spec.md §6 ("exclusiveScan... assumed available").
package compact

import (
	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/frustum"
	"github.com/minio/enterprise/internal/hashtable"
)

// PrefixScan mirrors spec.md §6's external collaborator.
type PrefixScan interface {
	ExclusiveScan(src []int32, dst []int32)
}

// Table is the slice of hashtable.Table the compactifier reads.
type Table interface {
	NumSlots() uint32
	SlotAt(i uint32) hashtable.HashEntry
}

// Compactifier runs the three-pass decide/scan/gather reduction.
type Compactifier struct {
	scan PrefixScan
}

// New returns a Compactifier driven by the given PrefixScan implementation.
func New(scan PrefixScan) *Compactifier {
	return &Compactifier{scan: scan}
}

// Result is the dense output of one compactification pass. Order is not
// meaningful (spec.md §4.9 "Output is not sorted").
type Result struct {
	Entries []hashtable.HashEntry
	Count   int
}

// Run performs decide (ptr != FreeEntry && in-frustum), prefix scan, and
// gather over every slot of tbl, using the scan this Compactifier was
// constructed with. The result is invalidated by any subsequent
// AllocBlock/Delete call on tbl.
func (c *Compactifier) Run(tbl Table, cam frustum.Camera, invWorld [4][4]float32, m coord.Math) Result {
	n := tbl.NumSlots()
	decision := make([]int32, n)
	snapshots := make([]hashtable.HashEntry, n)

	for i := uint32(0); i < n; i++ {
		e := tbl.SlotAt(i)
		snapshots[i] = e
		if e.Ptr != hashtable.FreeEntry && frustum.IsBlockInFrustumApprox(cam, invWorld, m, e.Pos) {
			decision[i] = 1
		}
	}

	prefix := make([]int32, n)
	c.scan.ExclusiveScan(decision, prefix)

	count := 0
	if n > 0 {
		count = int(prefix[n-1] + decision[n-1])
	}

	out := make([]hashtable.HashEntry, count)
	for i := uint32(0); i < n; i++ {
		if decision[i] == 1 {
			out[prefix[i]] = snapshots[i]
		}
	}

	return Result{Entries: out, Count: count}
}
