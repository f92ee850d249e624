package compact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/frustum"
	"github.com/minio/enterprise/internal/hashtable"
	"github.com/minio/enterprise/internal/scan"
)

type testTable struct {
	entries []hashtable.HashEntry
}

func (t testTable) NumSlots() uint32                    { return uint32(len(t.entries)) }
func (t testTable) SlotAt(i uint32) hashtable.HashEntry { return t.entries[i] }

// centerSetCamera reports a block in-frustum iff its world-space center
// (computed the same way frustum.IsBlockInFrustumApprox does) matches one
// of a fixed set of precomputed centers.
type centerSetCamera struct {
	centers map[coord.Vec3]bool
}

func (c centerSetCamera) IsPointInFrustumApprox(invWorld [4][4]float32, pWorld coord.Vec3) bool {
	return c.centers[pWorld]
}

// S6 — compactify: 100 populated positions, 40 marked in-frustum.
func TestCompactifyS6(t *testing.T) {
	m := coord.New(0.01, 1024)
	entries := make([]hashtable.HashEntry, 100)
	visible := make(map[coord.Vec3i]bool, 40)
	centers := make(map[coord.Vec3]bool, 40)
	for i := 0; i < 100; i++ {
		pos := coord.Vec3i{int32(i), 0, 0}
		entries[i] = hashtable.HashEntry{Pos: pos, Ptr: int32(i) * coord.VoxelsPerBlock}
		if i < 40 {
			visible[pos] = true
			centers[frustum.CenterWorld(m, pos)] = true
		}
	}
	tbl := testTable{entries: entries}
	cam := centerSetCamera{centers: centers}

	c := New(scan.Sequential{})
	result := c.Run(tbl, cam, [4][4]float32{}, m)

	require.Equal(t, 40, result.Count)
	require.Len(t, result.Entries, 40)

	got := make(map[coord.Vec3i]bool, 40)
	for _, e := range result.Entries {
		got[e.Pos] = true
	}
	require.Len(t, got, 40)
	for pos := range visible {
		require.True(t, got[pos], "pos %v must be in the compactified output", pos)
	}
}

func TestCompactifyEmptyTable(t *testing.T) {
	tbl := testTable{entries: nil}
	c := New(scan.Sequential{})
	result := c.Run(tbl, centerSetCamera{centers: map[coord.Vec3]bool{}}, [4][4]float32{}, coord.New(0.01, 1024))
	require.Equal(t, 0, result.Count)
	require.Empty(t, result.Entries)
}

func TestCompactifySkipsFreeSlots(t *testing.T) {
	m := coord.New(0.01, 1024)
	free := hashtable.HashEntry{Ptr: hashtable.FreeEntry}
	live := hashtable.HashEntry{Pos: coord.Vec3i{1, 1, 1}, Ptr: 0}
	tbl := testTable{entries: []hashtable.HashEntry{free, live}}

	centers := map[coord.Vec3]bool{
		frustum.CenterWorld(m, live.Pos): true,
		frustum.CenterWorld(m, coord.Vec3i{}): true, // free slot's zero-value pos; must still be excluded by Ptr check
	}
	cam := centerSetCamera{centers: centers}

	c := New(scan.Sequential{})
	result := c.Run(tbl, cam, [4][4]float32{}, m)
	require.Equal(t, 1, result.Count)
	require.Equal(t, live.Pos, result.Entries[0].Pos)
}
