// Package compress wraps github.com/klauspost/compress/zstd for the
// compactified-buffer compression path, grounded on cache_engine_v2.go's
// CompressionEngine: encoder/decoder constructed once, gated by a
// size threshold, with before/after sizes tracked for a ratio.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// MinSize is the smallest buffer this engine bothers compressing; below
// it the zstd frame overhead isn't worth paying (mirrors
// cache_engine_v2.go's CompressionThreshold gate).
const MinSize = 4 * 1024

// Engine holds a reusable zstd encoder/decoder pair.
type Engine struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New constructs an Engine with the teacher's chosen level
// (zstd.SpeedBetterCompression).
func New() (*Engine, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("compress: create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: create zstd decoder: %w", err)
	}
	return &Engine{encoder: encoder, decoder: decoder}, nil
}

// Close releases the decoder's background goroutines.
func (e *Engine) Close() {
	e.decoder.Close()
}

// CompressIfWorthwhile compresses buf when it meets MinSize, otherwise
// returns it unchanged with ok=false.
func (e *Engine) CompressIfWorthwhile(buf []byte) (out []byte, ok bool) {
	if len(buf) < MinSize {
		return buf, false
	}
	return e.encoder.EncodeAll(buf, nil), true
}

// Decompress reverses CompressIfWorthwhile's output.
func (e *Engine) Decompress(buf []byte) ([]byte, error) {
	out, err := e.decoder.DecodeAll(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: decode: %w", err)
	}
	return out, nil
}
