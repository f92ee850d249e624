// Package coord implements the coordinate algebra that glues world space,
// virtual voxel positions, block positions and intra-block linear indices
// together, plus the spatial hash used to place a block in the table.
package coord

// BlockSize is the number of voxels along one edge of a block (B in the spec).
const BlockSize = 8

// VoxelsPerBlock is B^3.
const VoxelsPerBlock = BlockSize * BlockSize * BlockSize

// Teschner's spatial-hash primes (see Teschner et al., "Optimized Spatial
// Hashing for Collision Detection of Deformable Objects").
const (
	primeX = 73856093
	primeY = 19349669
	primeZ = 83492791
)

// Vec3i is an integer 3-vector: a virtual voxel position or a block position.
type Vec3i [3]int32

// Vec3 is a float32 3-vector in world space.
type Vec3 [3]float32

// Math bundles the transforms that depend on virtualVoxelSize. It holds no
// mutable state and is safe for concurrent use by any number of workers.
type Math struct {
	voxelSize  float32
	numBuckets uint32
}

// New returns a Math for the given voxel size (world units per virtual
// voxel) and bucket count (used by ComputeHash).
func New(voxelSize float32, numBuckets uint32) Math {
	return Math{voxelSize: voxelSize, numBuckets: numBuckets}
}

// WorldToVirtualVoxelPos rounds p/voxelSize half-away-from-zero per axis.
func (m Math) WorldToVirtualVoxelPos(p Vec3) Vec3i {
	var out Vec3i
	for i := 0; i < 3; i++ {
		v := p[i] / m.voxelSize
		out[i] = int32(v + sign32(v)*0.5)
	}
	return out
}

// VirtualVoxelPosToWorld is the inverse scaling (not an exact inverse of
// WorldToVirtualVoxelPos, which is lossy by design).
func (m Math) VirtualVoxelPosToWorld(v Vec3i) Vec3 {
	return Vec3{
		float32(v[0]) * m.voxelSize,
		float32(v[1]) * m.voxelSize,
		float32(v[2]) * m.voxelSize,
	}
}

// VirtualVoxelPosToBlock divides by BlockSize with a negative-bias
// correction so that contiguous negative voxel runs map to contiguous
// negative block coordinates (floor division instead of truncation).
func VirtualVoxelPosToBlock(v Vec3i) Vec3i {
	var out Vec3i
	for i := 0; i < 3; i++ {
		c := v[i]
		if c < 0 {
			c -= BlockSize - 1
		}
		out[i] = c / BlockSize
	}
	return out
}

// BlockToVirtualVoxelPos returns the virtual voxel position of the block's
// lower corner.
func BlockToVirtualVoxelPos(b Vec3i) Vec3i {
	return Vec3i{b[0] * BlockSize, b[1] * BlockSize, b[2] * BlockSize}
}

// VirtualVoxelPosToLocalIndex linearizes a voxel position into its
// within-block index in [0, VoxelsPerBlock). Only the low bits of each
// axis (mod BlockSize) matter, so any voxel position works, not just ones
// already local to a block.
func VirtualVoxelPosToLocalIndex(v Vec3i) int {
	var local [3]int32
	for i := 0; i < 3; i++ {
		c := v[i] % BlockSize
		if c < 0 {
			c += BlockSize
		}
		local[i] = c
	}
	return int(local[2]*BlockSize*BlockSize + local[1]*BlockSize + local[0])
}

// WorldToBlock is the composition WorldToVirtualVoxelPos -> VirtualVoxelPosToBlock.
func (m Math) WorldToBlock(p Vec3) Vec3i {
	return VirtualVoxelPosToBlock(m.WorldToVirtualVoxelPos(p))
}

// ComputeHash maps a block position to a bucket index in [0, numBuckets).
// Overflow in the multiplication wraps per Go's defined two's-complement
// int32 arithmetic, matching the CUDA original's undefined-but-consistent
// signed overflow.
func (m Math) ComputeHash(pos Vec3i) uint32 {
	x := pos[0] * primeX
	y := pos[1] * primeY
	z := pos[2] * primeZ
	res := int32(x ^ y ^ z) % int32(m.numBuckets)
	if res < 0 {
		res += int32(m.numBuckets)
	}
	return uint32(res)
}

func sign32(v float32) float32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
