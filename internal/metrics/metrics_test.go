package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minio/enterprise/internal/coord"
)

func TestStatsLoadSnapshot(t *testing.T) {
	s := &Stats{}
	s.BlocksAllocated.Add(3)
	s.AllocContended.Add(2)

	snap := s.Load()
	require.EqualValues(t, 3, snap.BlocksAllocated)
	require.EqualValues(t, 2, snap.AllocContended)
}

func TestContentionSamplerRecordsDistinctPositions(t *testing.T) {
	cs := NewContentionSampler()
	cs.Record(coord.Vec3i{1, 2, 3})
	cs.Record(coord.Vec3i{1, 2, 3})
	cs.Record(coord.Vec3i{4, 5, 6})

	require.Equal(t, 2, cs.Len())
}

func TestContentionSamplerBounded(t *testing.T) {
	cs := NewContentionSampler()
	for i := int32(0); i < sampleCapacity+100; i++ {
		cs.Record(coord.Vec3i{i, 0, 0})
	}
	require.LessOrEqual(t, cs.Len(), sampleCapacity)
}

func TestContentionSamplerTopOrdersByCount(t *testing.T) {
	cs := NewContentionSampler()
	hot := coord.Vec3i{9, 9, 9}
	warm := coord.Vec3i{1, 1, 1}
	cold := coord.Vec3i{2, 2, 2}

	for i := 0; i < 5; i++ {
		cs.Record(hot)
	}
	for i := 0; i < 2; i++ {
		cs.Record(warm)
	}
	cs.Record(cold)

	top := cs.Top(2)
	require.Len(t, top, 2)
	require.Equal(t, hot, top[0].Pos)
	require.EqualValues(t, 5, top[0].Count)
	require.Equal(t, warm, top[1].Pos)
	require.EqualValues(t, 2, top[1].Count)
}
