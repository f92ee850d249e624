package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/scan"
)

// fakeDepthMap is a flat depth image; missing returns are left at 0.
type fakeDepthMap struct {
	w, h  int
	depth []float32
}

func newFakeDepthMap(w, h int, fill float32) *fakeDepthMap {
	d := make([]float32, w*h)
	for i := range d {
		d[i] = fill
	}
	return &fakeDepthMap{w: w, h: h, depth: d}
}

func (d *fakeDepthMap) Width() int  { return d.w }
func (d *fakeDepthMap) Height() int { return d.h }
func (d *fakeDepthMap) DepthAt(x, y int) float32 {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return 0
	}
	return d.depth[y*d.w+x]
}

// fakeColorMap returns a constant color for every pixel.
type fakeColorMap struct {
	w, h int
	rgb  [3]uint8
}

func (c *fakeColorMap) Width() int                { return c.w }
func (c *fakeColorMap) Height() int               { return c.h }
func (c *fakeColorMap) ColorAt(x, y int) [3]uint8 { return c.rgb }

// straightCamera looks down +z with no rotation; pixel (x, y) unprojects
// to world (x*pixelScale, y*pixelScale, depth) and everything is
// considered in-frustum, keeping the fixture focused on the hash table
// and integration math rather than frustum geometry.
type straightCamera struct {
	pixelScale float32
}

func (straightCamera) InverseRigidTransform() [4][4]float32 {
	var m [4][4]float32
	for i := 0; i < 4; i++ {
		m[i][i] = 1
	}
	return m
}

func (c straightCamera) Unproject(x, y int, depth float32) coord.Vec3 {
	return coord.Vec3{float32(x) * c.pixelScale, float32(y) * c.pixelScale, depth}
}

func (c straightCamera) Project(p coord.Vec3) (int, int, float32, bool) {
	if c.pixelScale == 0 {
		return 0, 0, p[2], true
	}
	x := int(p[0]/c.pixelScale + 0.5)
	y := int(p[1]/c.pixelScale + 0.5)
	return x, y, p[2], true
}

func (straightCamera) IsPointInFrustumApprox(invWorld [4][4]float32, pWorld coord.Vec3) bool {
	return true
}

func testParams(t *testing.T) HashParams {
	t.Helper()
	p, err := NewHashParams(
		WithNumBuckets(4096),
		WithNumBlocks(4096),
		WithVirtualVoxelSize(0.01),
		WithTruncation(0.05),
		WithTruncScale(0.01),
		WithAllocWorkers(4),
		WithMaxAllocPasses(4),
	)
	require.NoError(t, err)
	return *p
}

func TestNewHashParamsValidation(t *testing.T) {
	_, err := NewHashParams(WithNumBlocks(1))
	require.ErrorIs(t, err, ErrNumBucketsZero)

	_, err = NewHashParams(WithNumBuckets(1))
	require.ErrorIs(t, err, ErrNumBlocksZero)

	_, err = NewHashParams(WithNumBuckets(1), WithNumBlocks(1), WithBucketSize(7))
	require.ErrorIs(t, err, ErrBucketSize)

	_, err = NewHashParams(WithNumBuckets(1), WithNumBlocks(1), WithVirtualVoxelSize(-1))
	require.ErrorIs(t, err, ErrVoxelSize)
}

func TestAllocateIntegrateCompactifyRoundTrip(t *testing.T) {
	params := testParams(t)
	e, err := New(params, scan.Sequential{})
	require.NoError(t, err)

	depth := newFakeDepthMap(8, 8, 1.0)
	color := &fakeColorMap{w: 8, h: 8, rgb: [3]uint8{10, 20, 30}}
	cam := straightCamera{pixelScale: params.VirtualVoxelSize * coord.BlockSize}

	ctx := context.Background()
	require.NoError(t, e.AllocateFromDepth(ctx, depth, cam))

	stats := e.Stats()
	require.Greater(t, stats.LiveBlocks, 0)
	require.Greater(t, stats.BlocksAllocated, int64(0))

	require.NoError(t, e.IntegrateFromDepth(ctx, depth, color, cam))
	require.Greater(t, e.Stats().VoxelsIntegrated, int64(0))

	count, err := e.Compactify(ctx, cam)
	require.NoError(t, err)
	require.Equal(t, e.Stats().LiveBlocks, count)
}

func TestAllocateFromDepthIdempotent(t *testing.T) {
	params := testParams(t)
	e, err := New(params, scan.Sequential{})
	require.NoError(t, err)

	depth := newFakeDepthMap(4, 4, 1.0)
	cam := straightCamera{pixelScale: params.VirtualVoxelSize * coord.BlockSize}
	ctx := context.Background()

	require.NoError(t, e.AllocateFromDepth(ctx, depth, cam))
	first := e.Stats().BlocksAllocated

	require.NoError(t, e.AllocateFromDepth(ctx, depth, cam))
	require.Equal(t, first, e.Stats().BlocksAllocated, "re-running over the same frame must not allocate new blocks")
}

func TestGarbageCollectRemovesZeroWeightBlocks(t *testing.T) {
	params := testParams(t)
	e, err := New(params, scan.Sequential{})
	require.NoError(t, err)

	depth := newFakeDepthMap(4, 4, 1.0)
	cam := straightCamera{pixelScale: params.VirtualVoxelSize * coord.BlockSize}
	ctx := context.Background()

	require.NoError(t, e.AllocateFromDepth(ctx, depth, cam))
	liveBefore := e.Stats().LiveBlocks
	require.Greater(t, liveBefore, 0)

	// No integration happened, so every allocated block still carries
	// zero aggregate voxel weight.
	require.NoError(t, e.GarbageCollect(ctx))
	require.Equal(t, 0, e.Stats().LiveBlocks)
	require.Greater(t, e.Stats().BlocksReleased, int64(0))
}

func TestResetClearsEngineState(t *testing.T) {
	params := testParams(t)
	e, err := New(params, scan.Sequential{})
	require.NoError(t, err)

	depth := newFakeDepthMap(4, 4, 1.0)
	cam := straightCamera{pixelScale: params.VirtualVoxelSize * coord.BlockSize}
	ctx := context.Background()
	require.NoError(t, e.AllocateFromDepth(ctx, depth, cam))
	require.Greater(t, e.Stats().LiveBlocks, 0)

	e.Reset()
	stats := e.Stats()
	require.Equal(t, 0, stats.LiveBlocks)
	require.Equal(t, stats.NumBlocks, stats.FreeBlocks)
}
