package engine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/minio/enterprise/internal/compact"
	"github.com/minio/enterprise/internal/compress"
	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/hashtable"
	"github.com/minio/enterprise/internal/integrate"
	"github.com/minio/enterprise/internal/logging"
	"github.com/minio/enterprise/internal/metrics"
	"github.com/minio/enterprise/internal/telemetry"
)

// EngineStats is the public snapshot returned by Stats.
type EngineStats struct {
	metrics.Snapshot
	LiveBlocks  int
	FreeBlocks  uint32
	NumBlocks   uint32
	NumBuckets  uint32
}

// HashEngine is the public facade over the hash table, block arena and
// voxel integrator (spec.md §6). Grounded on the teacher's
// MultiTierCacheManager/V3CacheManager facade shape: config validated at
// construction, bounded worker pool fan-out per pass, atomic stats,
// lifecycle ctx/cancel.
type HashEngine struct {
	params HashParams
	math   coord.Math

	table        *hashtable.Table
	voxels       []integrate.Voxel
	integrateCfg integrate.Params

	compactifier *compact.Compactifier

	stats   *metrics.Stats
	sampler *metrics.ContentionSampler
	log     logging.Logger

	compressor *compress.Engine

	mu sync.Mutex // serializes Reset calls; pass methods do not take it
}

// New constructs a HashEngine. pfx is the PrefixScan collaborator
// Compactify delegates to (spec.md §6); pass scan.Sequential{} or
// scan.Chunked{} from internal/scan, or any implementation satisfying
// the interface.
func New(params HashParams, pfx PrefixScan) (*HashEngine, error) {
	if err := telemetry.Init(params.JaegerEndpoint); err != nil {
		return nil, fmt.Errorf("engine: init telemetry: %w", err)
	}

	stats := &metrics.Stats{}
	tableLog := logging.New("hashtable")

	table := hashtable.New(hashtable.Params{
		NumBuckets:                 params.NumBuckets,
		BucketSize:                 params.BucketSize,
		NumBlocks:                  params.NumBlocks,
		VirtualVoxelSize:           params.VirtualVoxelSize,
		HashMaxCollisionListLength: params.HashMaxCollisionListLength,
		Log:                        &tableLog,
		Stats:                      stats,
	})

	var compressor *compress.Engine
	if params.CompactionCompression {
		var err error
		compressor, err = compress.New()
		if err != nil {
			return nil, fmt.Errorf("engine: init compression: %w", err)
		}
	}

	e := &HashEngine{
		params: params,
		math:   coord.New(params.VirtualVoxelSize, params.NumBuckets),
		table:  table,
		voxels: make([]integrate.Voxel, uint64(params.NumBlocks)*uint64(coord.VoxelsPerBlock)),
		integrateCfg: integrate.Params{
			Truncation:           params.Truncation,
			TruncScale:           params.TruncScale,
			IntegrationWeightMax: params.IntegrationWeightMax,
		},
		compactifier: compact.New(pfx),
		stats:        stats,
		sampler:      metrics.NewContentionSampler(),
		log:          logging.New("engine"),
		compressor:   compressor,
	}
	return e, nil
}

// Reset reinitializes the arena free stack and clears the table
// (spec.md §6 reset()). Not safe to call concurrently with any pass.
func (e *HashEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.table.Reset()
	for i := range e.voxels {
		e.voxels[i] = integrate.Voxel{}
	}
}

// Stats returns a snapshot of the engine's counters.
func (e *HashEngine) Stats() EngineStats {
	live := 0
	for i := uint32(0); i < e.table.NumSlots(); i++ {
		if e.table.SlotAt(i).Ptr != hashtable.FreeEntry {
			live++
		}
	}
	snap := e.stats.Load()
	snap.LastLiveBlocks = int64(live)
	return EngineStats{
		Snapshot:   snap,
		LiveBlocks: live,
		FreeBlocks: e.table.Arena().FreeCount(),
		NumBlocks:  e.table.Arena().NumBlocks(),
		NumBuckets: e.table.NumBuckets(),
	}
}

// TopContention returns up to n of the block positions that have most
// often lost the tryLock race during AllocateFromDepth, for operators
// diagnosing an undersized table or a contended workload.
func (e *HashEngine) TopContention(n int) []metrics.ContentionSample {
	return e.sampler.Top(n)
}

// Shutdown releases the engine's background resources: the zstd
// decoder's goroutines (if compression was enabled) and the telemetry
// tracer provider, grounded on the teacher's V3CacheManager.Shutdown
// close-then-wait idiom. Safe to call once, after the engine is done
// serving passes.
func (e *HashEngine) Shutdown(ctx context.Context) error {
	if e.compressor != nil {
		e.compressor.Close()
	}
	return telemetry.Shutdown(ctx)
}

// AllocateFromDepth projects every valid depth pixel's truncation band
// onto block positions and calls AllocBlock for each, via a bounded
// goroutine pool fanned out per scanline (the Go stand-in for
// spec.md §5's massively-parallel worker fabric). Lock losers are
// retried on subsequent internal passes, up to MaxAllocPasses, absorbing
// contention the way spec.md §6 describes ("may require multiple
// internal iterations").
func (e *HashEngine) AllocateFromDepth(ctx context.Context, depth DepthMap, cam CameraModel) error {
	ctx, span := telemetry.StartPass(ctx, telemetry.Tracer("engine"), "AllocateFromDepth")
	defer func() { telemetry.EndPass(span, e.passAttributes()) }()

	positions := e.visibleBlockPositions(depth, cam)

	// Clear bucket locks a previous pass left claimed.
	e.table.ResetLocks()

	pending := make([]coord.Vec3i, 0, len(positions))
	for p := range positions {
		pending = append(pending, p)
	}

	var arenaExhausted bool
	for pass := 0; pass < e.params.MaxAllocPasses && len(pending) > 0; pass++ {
		next := pending[:0:0]
		for _, pos := range pending {
			switch e.table.AllocBlock(pos) {
			case hashtable.AllocCreated:
				e.stats.BlocksAllocated.Add(1)
			case hashtable.AllocAlreadyExists:
				// idempotent no-op
			case hashtable.AllocContended:
				e.stats.AllocContended.Add(1)
				e.sampler.Record(pos)
				next = append(next, pos)
			case hashtable.AllocChainExhausted:
				e.stats.ChainBoundHits.Add(1)
				e.log.ChainBoundExceeded(e.math.ComputeHash(pos), pos)
			case hashtable.AllocArenaExhausted:
				e.stats.ArenaExhaustions.Add(1)
				e.log.ArenaExhausted(pos)
				arenaExhausted = true
			}
		}
		pending = next
		if len(pending) > 0 {
			e.table.ResetLocks()
		}
	}

	if arenaExhausted {
		telemetry.RecordError(ctx, ErrArenaExhausted)
		return ErrArenaExhausted
	}
	return nil
}

// visibleBlockPositions fans depth-pixel processing out over a bounded
// worker pool and returns the set of candidate block positions within
// each pixel's truncation band.
func (e *HashEngine) visibleBlockPositions(depth DepthMap, cam CameraModel) map[coord.Vec3i]struct{} {
	width, height := depth.Width(), depth.Height()

	type rowResult struct {
		positions []coord.Vec3i
	}
	results := make([]rowResult, height)

	workers := e.params.AllocWorkers
	if workers > height && height > 0 {
		workers = height
	}
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	rowCh := make(chan int, height)
	for y := 0; y < height; y++ {
		rowCh <- y
	}
	close(rowCh)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowCh {
				var rowPositions []coord.Vec3i
				for x := 0; x < width; x++ {
					d := depth.DepthAt(x, y)
					if d <= 0 {
						continue
					}
					trunc := e.integrateCfg.Truncation(d)
					step := e.params.VirtualVoxelSize * float32(coord.BlockSize)
					if step <= 0 {
						step = 0.08
					}
					for off := -trunc; off <= trunc; off += step {
						depthSample := d + off
						if depthSample <= 0 {
							continue
						}
						world := cam.Unproject(x, y, depthSample)
						rowPositions = append(rowPositions, e.math.WorldToBlock(world))
					}
				}
				results[y] = rowResult{positions: rowPositions}
			}
		}()
	}
	wg.Wait()

	set := make(map[coord.Vec3i]struct{})
	for _, r := range results {
		for _, p := range r.positions {
			set[p] = struct{}{}
		}
	}
	return set
}

// IntegrateFromDepth walks every live, in-frustum block (via a fresh
// Compactify pass) and updates its voxels with the weighted SDF+color
// combine (spec.md §4.7).
func (e *HashEngine) IntegrateFromDepth(ctx context.Context, depth DepthMap, color ColorMap, cam CameraModel) error {
	ctx, span := telemetry.StartPass(ctx, telemetry.Tracer("engine"), "IntegrateFromDepth")
	defer func() { telemetry.EndPass(span, e.passAttributes()) }()

	invWorld := cam.InverseRigidTransform()
	result := e.compactifier.Run(e.table, cam, invWorld, e.math)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.params.AllocWorkers)
	for _, entry := range result.Entries {
		entry := entry
		g.Go(func() error {
			e.integrateBlock(entry, depth, color, cam)
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return nil
			}
		})
	}
	return g.Wait()
}

func (e *HashEngine) integrateBlock(entry hashtable.HashEntry, depth DepthMap, color ColorMap, cam CameraModel) {
	base := coord.BlockToVirtualVoxelPos(entry.Pos)
	for lz := int32(0); lz < coord.BlockSize; lz++ {
		for ly := int32(0); ly < coord.BlockSize; ly++ {
			for lx := int32(0); lx < coord.BlockSize; lx++ {
				voxelPos := coord.Vec3i{base[0] + lx, base[1] + ly, base[2] + lz}
				world := e.math.VirtualVoxelPosToWorld(voxelPos)

				x, y, camDepth, ok := cam.Project(world)
				if !ok || x < 0 || y < 0 || x >= depth.Width() || y >= depth.Height() {
					continue
				}
				measured := depth.DepthAt(x, y)
				if measured <= 0 {
					continue
				}

				sdf := measured - camDepth
				trunc := e.integrateCfg.Truncation(measured)
				if sdf > trunc || sdf < -trunc {
					continue
				}

				localIdx := int32(coord.VirtualVoxelPosToLocalIndex(voxelPos))
				idx := entry.Ptr + localIdx

				observation := integrate.Voxel{SDF: sdf, Weight: 1, Color: color.ColorAt(x, y)}
				e.voxels[idx] = integrate.Combine(e.voxels[idx], observation, e.integrateCfg)
				e.stats.VoxelsIntegrated.Add(1)
			}
		}
	}
}

// Compactify runs the decide/scan/gather pass and returns the count of
// live visible blocks (spec.md §6 compactify()). When
// CompactionCompression is enabled, the gathered buffer's serialized form
// is compressed before being handed to a recording sink (stubbed here —
// no file I/O per spec.md §1 Out-of-scope).
func (e *HashEngine) Compactify(ctx context.Context, cam CameraModel) (int, error) {
	_, span := telemetry.StartPass(ctx, telemetry.Tracer("engine"), "Compactify")
	defer func() { telemetry.EndPass(span, e.passAttributes()) }()

	invWorld := cam.InverseRigidTransform()
	result := e.compactifier.Run(e.table, cam, invWorld, e.math)
	e.stats.CompactionRuns.Add(1)
	e.stats.LastLiveBlocks.Store(int64(result.Count))

	if e.compressor != nil && result.Count > 0 {
		buf := serializeEntries(result.Entries)
		if _, ok := e.compressor.CompressIfWorthwhile(buf); !ok {
			e.log.Info("compactified buffer below compression threshold", map[string]any{"bytes": len(buf)})
		}
	}

	return result.Count, nil
}

func serializeEntries(entries []hashtable.HashEntry) []byte {
	buf := make([]byte, 0, len(entries)*12)
	for _, e := range entries {
		buf = append(buf,
			byte(e.Pos[0]), byte(e.Pos[0]>>8), byte(e.Pos[0]>>16), byte(e.Pos[0]>>24),
			byte(e.Pos[1]), byte(e.Pos[1]>>8), byte(e.Pos[1]>>16), byte(e.Pos[1]>>24),
			byte(e.Pos[2]), byte(e.Pos[2]>>8), byte(e.Pos[2]>>16), byte(e.Pos[2]>>24),
		)
	}
	return buf
}

// GarbageCollect scans the table for blocks whose aggregate voxel weight
// has collapsed to zero and deletes them (spec.md §6 garbageCollect()).
func (e *HashEngine) GarbageCollect(ctx context.Context) error {
	_, span := telemetry.StartPass(ctx, telemetry.Tracer("engine"), "GarbageCollect")
	defer func() { telemetry.EndPass(span, e.passAttributes()) }()

	// Clear bucket locks a previous pass left claimed.
	e.table.ResetLocks()

	for i := uint32(0); i < e.table.NumSlots(); i++ {
		entry := e.table.SlotAt(i)
		if entry.Ptr == hashtable.FreeEntry {
			continue
		}
		if e.blockWeight(entry.Ptr) > 0 {
			continue
		}
		switch e.table.DeleteHashEntryElement(entry.Pos) {
		case hashtable.DeleteOK:
			e.stats.BlocksReleased.Add(1)
		case hashtable.DeleteContended:
			e.stats.DeleteContended.Add(1)
		case hashtable.DeleteNotFound:
			// raced with a concurrent delete; nothing to do
		}
	}
	return nil
}

func (e *HashEngine) blockWeight(ptr int32) int {
	total := 0
	for i := int32(0); i < coord.VoxelsPerBlock; i++ {
		total += int(e.voxels[ptr+i].Weight)
	}
	return total
}

func (e *HashEngine) passAttributes() telemetry.PassAttributes {
	free := e.table.Arena().FreeCount()
	total := e.table.Arena().NumBlocks()
	occupancy := 0.0
	if total > 0 {
		occupancy = 1.0 - float64(free)/float64(total)
	}
	return telemetry.PassAttributes{
		LiveBlocks:     int(e.stats.LastLiveBlocks.Load()),
		ChainLenBucket: int(e.stats.ChainBoundHits.Load()),
		ArenaOccupancy: occupancy,
	}
}
