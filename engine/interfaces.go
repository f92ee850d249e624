package engine

import "github.com/minio/enterprise/internal/coord"

// DepthMap is the external sensor-adapter collaborator (spec.md §6,
// out of scope per §1: "depth/color sensor acquisition... external
// collaborators").
type DepthMap interface {
	Width() int
	Height() int
	// DepthAt returns the measured depth in meters at (x, y); 0 means
	// invalid/no return.
	DepthAt(x, y int) float32
}

// ColorMap is the paired color frame for integration.
type ColorMap interface {
	Width() int
	Height() int
	ColorAt(x, y int) [3]uint8
}

// CameraModel bundles intrinsics/extrinsics bookkeeping and the frustum
// test, supplied by the caller (spec.md §1 "Out of scope... intrinsics/
// extrinsics bookkeeping (supplied as a CameraModel struct)").
type CameraModel interface {
	// InverseRigidTransform returns the current camera pose's inverse
	// rigid transform (spec.md §6 HashParams.rigidTransformInverse).
	InverseRigidTransform() [4][4]float32
	// Unproject maps a depth-pixel + depth sample to a world-space
	// point along that pixel's viewing ray.
	Unproject(x, y int, depth float32) coord.Vec3
	// Project maps a world-space point back to a depth-pixel and the
	// camera-space depth at that point; ok is false if the point falls
	// outside the image plane.
	Project(p coord.Vec3) (x, y int, depth float32, ok bool)
	// IsPointInFrustumApprox is spec.md §4.8's point-in-frustum test.
	IsPointInFrustumApprox(invWorld [4][4]float32, pWorld coord.Vec3) bool
}

// PrefixScan is spec.md §6's exclusiveScan collaborator.
type PrefixScan interface {
	ExclusiveScan(src []int32, dst []int32)
}
