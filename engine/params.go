// Package engine implements HashEngine, the public facade over the
// hash table, block arena and voxel integrator: allocate-from-frame,
// integrate-from-frame, compactify and garbage-collect. Config is
// constructed via functional options and validated once, matching the
// teacher's NewMultiTierCacheManager/NewV3CacheManager
// constructor-validates-config idiom.
package engine

import (
	"errors"
	"fmt"
)

// HashParams bundles every fixed-at-init constant the engine's
// operations close over (spec.md §6). It is immutable after
// NewHashParams returns and is threaded explicitly into every
// lower-level package rather than held as a process-wide global
// (spec.md §9 "global constant parameters" note — Go has no
// process-wide-constant equivalent).
type HashParams struct {
	NumBuckets                 uint32
	BucketSize                 uint32
	NumBlocks                  uint32
	VirtualVoxelSize           float32
	Truncation                 float32
	TruncScale                 float32
	IntegrationWeightMax       uint32
	HashMaxCollisionListLength uint32

	// AllocWorkers bounds the goroutine pool AllocateFromDepth fans
	// out over, the Go stand-in for "thousands of workers per frame".
	AllocWorkers int
	// MaxAllocPasses bounds how many internal retry passes
	// AllocateFromDepth runs to absorb lock contention before giving
	// up on the remaining contended positions for this frame.
	MaxAllocPasses int

	// CompactionCompression enables zstd compression of the gathered
	// compactified buffer before it reaches a recording sink.
	CompactionCompression bool

	// JaegerEndpoint, if non-empty, enables span export via
	// internal/telemetry. Left empty, tracing stays local-only.
	JaegerEndpoint string
}

// Option mutates a HashParams under construction.
type Option func(*HashParams)

func WithNumBuckets(n uint32) Option        { return func(p *HashParams) { p.NumBuckets = n } }
func WithNumBlocks(n uint32) Option         { return func(p *HashParams) { p.NumBlocks = n } }
func WithBucketSize(n uint32) Option        { return func(p *HashParams) { p.BucketSize = n } }
func WithVirtualVoxelSize(v float32) Option { return func(p *HashParams) { p.VirtualVoxelSize = v } }
func WithTruncation(v float32) Option       { return func(p *HashParams) { p.Truncation = v } }
func WithTruncScale(v float32) Option       { return func(p *HashParams) { p.TruncScale = v } }
func WithIntegrationWeightMax(v uint32) Option {
	return func(p *HashParams) { p.IntegrationWeightMax = v }
}
func WithHashMaxCollisionListLength(v uint32) Option {
	return func(p *HashParams) { p.HashMaxCollisionListLength = v }
}
func WithAllocWorkers(n int) Option   { return func(p *HashParams) { p.AllocWorkers = n } }
func WithMaxAllocPasses(n int) Option { return func(p *HashParams) { p.MaxAllocPasses = n } }
func WithCompactionCompression() Option {
	return func(p *HashParams) { p.CompactionCompression = true }
}
func WithJaegerEndpoint(endpoint string) Option {
	return func(p *HashParams) { p.JaegerEndpoint = endpoint }
}

// Default geometry: bucket size 20, block size 8 (spec.md §3) are the
// only values the spec treats as fixed constants rather than tunables;
// everything else below is a sane default an operator can override.
const defaultBucketSize = 20

var (
	ErrNumBucketsZero = errors.New("engine: NumBuckets must be > 0")
	ErrNumBlocksZero  = errors.New("engine: NumBlocks must be > 0")
	ErrBucketSize     = errors.New("engine: BucketSize must equal 20 per spec")
	ErrVoxelSize      = errors.New("engine: VirtualVoxelSize must be > 0")
)

// NewHashParams applies opts over sane defaults and validates the result.
func NewHashParams(opts ...Option) (*HashParams, error) {
	p := &HashParams{
		BucketSize:                 defaultBucketSize,
		VirtualVoxelSize:           0.01,
		Truncation:                 0.02,
		TruncScale:                 0.01,
		IntegrationWeightMax:       255,
		HashMaxCollisionListLength: 64,
		AllocWorkers:               32,
		MaxAllocPasses:             8,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.NumBuckets == 0 {
		return nil, ErrNumBucketsZero
	}
	if p.NumBlocks == 0 {
		return nil, ErrNumBlocksZero
	}
	if p.BucketSize != defaultBucketSize {
		return nil, fmt.Errorf("%w: got %d", ErrBucketSize, p.BucketSize)
	}
	if p.VirtualVoxelSize <= 0 {
		return nil, ErrVoxelSize
	}
	if p.AllocWorkers <= 0 {
		p.AllocWorkers = 1
	}
	if p.MaxAllocPasses <= 0 {
		p.MaxAllocPasses = 1
	}

	return p, nil
}
