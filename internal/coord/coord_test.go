package coord

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVirtualVoxelPosToBlockNegativeBias(t *testing.T) {
	// Contiguous negative voxel positions must map to contiguous negative
	// block coordinates: -1..-8 all belong to block -1.
	for v := int32(-8); v <= -1; v++ {
		b := VirtualVoxelPosToBlock(Vec3i{v, 0, 0})
		require.Equal(t, int32(-1), b[0], "voxel %d", v)
	}
	require.Equal(t, int32(0), VirtualVoxelPosToBlock(Vec3i{0, 0, 0})[0])
	require.Equal(t, int32(0), VirtualVoxelPosToBlock(Vec3i{7, 0, 0})[0])
	require.Equal(t, int32(1), VirtualVoxelPosToBlock(Vec3i{8, 0, 0})[0])
}

func TestVirtualVoxelPosToLocalIndexWraps(t *testing.T) {
	idx := VirtualVoxelPosToLocalIndex(Vec3i{-1, -1, -1})
	require.Equal(t, VirtualVoxelPosToLocalIndex(Vec3i{7, 7, 7}), idx)
	require.GreaterOrEqual(t, idx, 0)
	require.Less(t, idx, VoxelsPerBlock)
}

func TestWorldToVirtualVoxelPosRoundTrip(t *testing.T) {
	m := New(0.02, 1024)
	for _, v := range []Vec3i{{0, 0, 0}, {7, 3, -2}, {-100, 50, -5}, {1, 1, 1}} {
		world := m.VirtualVoxelPosToWorld(v)
		got := m.WorldToVirtualVoxelPos(world)
		require.Equal(t, v, got)
	}
}

func TestWorldToVirtualVoxelPosZeroEdge(t *testing.T) {
	m := New(0.01, 1024)
	require.Equal(t, Vec3i{0, 0, 0}, m.WorldToVirtualVoxelPos(Vec3{0, 0, 0}))
}

func TestComputeHashDeterministicAndInRange(t *testing.T) {
	m := New(0.01, 1024)
	pos := Vec3i{7, 3, -2}
	h1 := m.ComputeHash(pos)
	h2 := m.ComputeHash(pos)
	require.Equal(t, h1, h2)
	require.Less(t, h1, uint32(1024))
}

func TestComputeHashCoversNegativeCoordinates(t *testing.T) {
	m := New(0.01, 1024)
	for x := int32(-50); x < 50; x++ {
		h := m.ComputeHash(Vec3i{x, -x * 3, x * x})
		require.Less(t, h, uint32(1024))
	}
}
