// Package logging provides the structured logger every engine package
// uses for diagnostic output, replacing the teacher's plain log.Printf
// convention (cmd/server/main.go, internal/tracing/tracing.go) with
// github.com/rs/zerolog fields so the three structural error kinds the
// spec defines — ChainBoundExceeded, ArenaExhausted, IllegalBlockIndex —
// carry bucket/pos/blockIdx context instead of interpolated strings.
// Transient contention is never logged here (spec.md §7 propagation
// policy: handled locally, silent retry).
package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/minio/enterprise/internal/coord"
)

// Logger wraps a zerolog.Logger scoped to one engine component.
type Logger struct {
	z zerolog.Logger
}

// New returns a Logger writing structured JSON to stderr, tagged with
// component (e.g. "hashtable", "engine").
func New(component string) Logger {
	z := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("component", component).
		Logger()
	return Logger{z: z}
}

// ChainBoundExceeded logs the spec.md §7 invariant-violation diagnostic:
// a collision chain walk hit hashMaxCollisionLinkedListSize without
// resolving, which indicates the table is undersized for the workload.
func (l Logger) ChainBoundExceeded(bucket uint32, pos coord.Vec3i) {
	l.z.Warn().
		Uint32("bucket", bucket).
		Interface("pos", pos).
		Msg("chain bound exceeded: table undersized for this workload")
}

// ArenaExhausted logs a dropped allocation: the free-block stack was
// empty when Consume was called. The frame's allocation is dropped; the
// driver may trigger GarbageCollect and retry.
func (l Logger) ArenaExhausted(pos coord.Vec3i) {
	l.z.Warn().
		Interface("pos", pos).
		Msg("arena exhausted: dropping this frame's allocation")
}

// IllegalBlockIndex logs a Release call with an out-of-range block index,
// which indicates upstream memory corruption.
func (l Logger) IllegalBlockIndex(blockIdx uint32, numBlocks uint32) {
	l.z.Error().
		Uint32("block_idx", blockIdx).
		Uint32("num_blocks", numBlocks).
		Msg("illegal block index on release: possible memory corruption")
}

// Info logs an informational message with optional structured fields.
func (l Logger) Info(msg string, fields map[string]any) {
	ev := l.z.Info()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

// Error logs err with an associated message and optional structured fields.
func (l Logger) Error(msg string, err error, fields map[string]any) {
	ev := l.z.Error().Err(err)
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
