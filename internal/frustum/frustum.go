// Package frustum implements the approximate block-in-frustum predicate:
// a single-point test against the block's center, traded for speed over
// exactness (spec.md §4.8 — callers needing safety on glancing blocks must
// apply their own margin or multi-sample).
package frustum

import "github.com/minio/enterprise/internal/coord"

// Camera is the external collaborator providing the point-in-frustum test
// (spec.md §6 CameraModel). pInvWorld is the inverse rigid transform
// (camera pose); pWorld is the world-space point under test.
type Camera interface {
	IsPointInFrustumApprox(pInvWorld [4][4]float32, pWorld coord.Vec3) bool
}

// IsBlockInFrustumApprox tests whether blockPos's center is inside cam's
// frustum, given the current inverse rigid transform.
func IsBlockInFrustumApprox(cam Camera, invWorld [4][4]float32, m coord.Math, blockPos coord.Vec3i) bool {
	center := CenterWorld(m, blockPos)
	return cam.IsPointInFrustumApprox(invWorld, center)
}

// CenterWorld returns the world-space center of the block at blockPos:
// its lower corner translated by voxelSize*(BlockSize-1)/2 along each axis.
func CenterWorld(m coord.Math, blockPos coord.Vec3i) coord.Vec3 {
	lowerVoxel := coord.BlockToVirtualVoxelPos(blockPos)
	lower := m.VirtualVoxelPosToWorld(lowerVoxel)
	half := m.VirtualVoxelPosToWorld(coord.Vec3i{1, 1, 1})[0] * float32(coord.BlockSize-1) / 2
	return coord.Vec3{lower[0] + half, lower[1] + half, lower[2] + half}
}
