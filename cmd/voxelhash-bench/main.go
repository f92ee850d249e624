// cmd/voxelhash-bench drives HashEngine against synthetic depth frames and
// reports allocation/integration/compaction throughput and contention,
// grounded on cmd/server/main.go's lifecycle conventions: GOMAXPROCS tuned
// to NumCPU, env-var configuration, a printed startup banner and a
// signal-driven graceful shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/minio/enterprise/engine"
	"github.com/minio/enterprise/internal/coord"
	"github.com/minio/enterprise/internal/scan"
)

const (
	defaultNumBuckets = 1 << 20
	defaultNumBlocks  = 1 << 18
	defaultWidth      = 320
	defaultHeight     = 240
	defaultFrames     = 30
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	fmt.Println("voxelhash-bench")
	fmt.Println("===============")
	fmt.Printf("CPUs: %d, GOMAXPROCS: %d\n", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("bench run failed: %v", err)
	}

	fmt.Println("done")
}

type config struct {
	numBuckets uint32
	numBlocks  uint32
	width      int
	height     int
	frames     int
	jaeger     string
}

func loadConfig() config {
	return config{
		numBuckets: envUint32("VOXELHASH_NUM_BUCKETS", defaultNumBuckets),
		numBlocks:  envUint32("VOXELHASH_NUM_BLOCKS", defaultNumBlocks),
		width:      envInt("VOXELHASH_WIDTH", defaultWidth),
		height:     envInt("VOXELHASH_HEIGHT", defaultHeight),
		frames:     envInt("VOXELHASH_FRAMES", defaultFrames),
		jaeger:     os.Getenv("JAEGER_ENDPOINT"),
	}
}

func envUint32(key string, fallback uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(n)
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func run(ctx context.Context, cfg config) error {
	params, err := engine.NewHashParams(
		engine.WithNumBuckets(cfg.numBuckets),
		engine.WithNumBlocks(cfg.numBlocks),
		engine.WithVirtualVoxelSize(0.01),
		engine.WithTruncation(0.05),
		engine.WithTruncScale(0.01),
		engine.WithAllocWorkers(runtime.NumCPU()*4),
		engine.WithMaxAllocPasses(8),
		engine.WithCompactionCompression(),
		engine.WithJaegerEndpoint(cfg.jaeger),
	)
	if err != nil {
		return fmt.Errorf("build hash params: %w", err)
	}

	fmt.Printf("initializing engine: %d buckets, %d blocks, %dx%d frames x%d\n",
		cfg.numBuckets, cfg.numBlocks, cfg.width, cfg.height, cfg.frames)

	eng, err := engine.New(*params, scan.Chunked{})
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := eng.Shutdown(shutdownCtx); err != nil {
			log.Printf("engine shutdown error: %v", err)
		}
	}()

	color := &flatColorMap{w: cfg.width, h: cfg.height, rgb: [3]uint8{128, 128, 128}}

	start := time.Now()
	for frame := 0; frame < cfg.frames; frame++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		depth := sweepingPlaneDepthMap(cfg.width, cfg.height, frame)
		cam := orbitCamera{radius: 1.5, angle: float32(frame) * 0.05}

		frameStart := time.Now()
		if err := eng.AllocateFromDepth(ctx, depth, cam); err != nil {
			log.Printf("frame %d: allocate: %v", frame, err)
		}
		if err := eng.IntegrateFromDepth(ctx, depth, color, cam); err != nil {
			log.Printf("frame %d: integrate: %v", frame, err)
		}
		live, err := eng.Compactify(ctx, cam)
		if err != nil {
			log.Printf("frame %d: compactify: %v", frame, err)
		}
		if frame%5 == 0 || frame == cfg.frames-1 {
			stats := eng.Stats()
			fmt.Printf("frame %4d: live=%d alloc=%d contended=%d chain_bound=%d arena_exhausted=%d voxels=%d (%s)\n",
				frame, live, stats.BlocksAllocated, stats.AllocContended, stats.ChainBoundHits,
				stats.ArenaExhaustions, stats.VoxelsIntegrated, time.Since(frameStart))
		}

		if frame%10 == 9 {
			if err := eng.GarbageCollect(ctx); err != nil {
				log.Printf("frame %d: gc: %v", frame, err)
			}
		}
	}

	elapsed := time.Since(start)
	stats := eng.Stats()
	fmt.Println("---")
	fmt.Printf("frames: %d, elapsed: %s, frames/sec: %.2f\n",
		cfg.frames, elapsed, float64(cfg.frames)/elapsed.Seconds())
	fmt.Printf("final live blocks: %d / %d (%.1f%% occupancy)\n",
		stats.LiveBlocks, stats.NumBlocks, 100*float64(stats.NumBlocks-stats.FreeBlocks)/float64(stats.NumBlocks))
	fmt.Printf("blocks allocated: %d, released: %d, alloc contended: %d, delete contended: %d\n",
		stats.BlocksAllocated, stats.BlocksReleased, stats.AllocContended, stats.DeleteContended)
	fmt.Printf("chain bound hits: %d, arena exhaustions: %d\n",
		stats.ChainBoundHits, stats.ArenaExhaustions)

	if top := eng.TopContention(5); len(top) > 0 {
		fmt.Println("hottest contended block positions:")
		for _, s := range top {
			fmt.Printf("  %v: %d losses\n", s.Pos, s.Count)
		}
	}

	return nil
}

// flatColorMap returns a single constant color for every pixel, enough to
// exercise the color-blend path without needing real imagery.
type flatColorMap struct {
	w, h int
	rgb  [3]uint8
}

func (c *flatColorMap) Width() int                { return c.w }
func (c *flatColorMap) Height() int               { return c.h }
func (c *flatColorMap) ColorAt(x, y int) [3]uint8 { return c.rgb }

// planeDepthMap is a fronto-parallel plane at one depth. sweepingPlaneDepthMap
// moves it sinusoidally between 0.8 and 1.2 across frames, giving
// AllocateFromDepth / IntegrateFromDepth a moving, bounded workload to
// churn through.
type planeDepthMap struct {
	w, h  int
	depth float32
}

func (d *planeDepthMap) Width() int  { return d.w }
func (d *planeDepthMap) Height() int { return d.h }
func (d *planeDepthMap) DepthAt(x, y int) float32 {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return 0
	}
	return d.depth
}

func sweepingPlaneDepthMap(w, h, frame int) *planeDepthMap {
	base := float32(1.0)
	amplitude := float32(0.2)
	depth := base + amplitude*float32(math.Sin(float64(frame)*0.1))
	return &planeDepthMap{w: w, h: h, depth: depth}
}

// orbitCamera is a fixed-intrinsics pinhole model. Its pose circles the
// origin at a constant radius, but the pose only feeds
// InverseRigidTransform: Unproject and Project treat the camera as sitting
// at the origin looking down +z, and IsPointInFrustumApprox accepts every
// point with positive z.
type orbitCamera struct {
	radius float32
	angle  float32
	focal  float32
}

func (c orbitCamera) focalLength() float32 {
	if c.focal != 0 {
		return c.focal
	}
	return 500
}

func (c orbitCamera) InverseRigidTransform() [4][4]float32 {
	cos, sin := float32(math.Cos(float64(c.angle))), float32(math.Sin(float64(c.angle)))
	var m [4][4]float32
	m[0] = [4]float32{cos, 0, sin, c.radius * sin}
	m[1] = [4]float32{0, 1, 0, 0}
	m[2] = [4]float32{-sin, 0, cos, c.radius * cos}
	m[3] = [4]float32{0, 0, 0, 1}
	return m
}

func (c orbitCamera) Unproject(x, y int, depth float32) coord.Vec3 {
	f := c.focalLength()
	cx, cy := float32(defaultWidth)/2, float32(defaultHeight)/2
	return coord.Vec3{
		(float32(x) - cx) * depth / f,
		(float32(y) - cy) * depth / f,
		depth,
	}
}

func (c orbitCamera) Project(p coord.Vec3) (int, int, float32, bool) {
	if p[2] <= 0 {
		return 0, 0, 0, false
	}
	f := c.focalLength()
	cx, cy := float32(defaultWidth)/2, float32(defaultHeight)/2
	x := int(p[0]*f/p[2] + cx)
	y := int(p[1]*f/p[2] + cy)
	return x, y, p[2], true
}

func (c orbitCamera) IsPointInFrustumApprox(invWorld [4][4]float32, pWorld coord.Vec3) bool {
	return pWorld[2] > 0
}
