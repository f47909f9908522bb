package transform

import (
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// emitWriter adapts the Emit of the current call to io.Writer so streaming
// compressors can write straight into the next stage.
type emitWriter struct {
	emit Emit
}

func (w *emitWriter) Write(p []byte) (int, error) {
	if w.emit == nil {
		return len(p), nil
	}
	if err := w.emit(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// GzipEncoder compresses its input into a gzip stream.
type GzipEncoder struct {
	out emitWriter
	zw  *gzip.Writer
}

// NewGzipEncoder returns a gzip codec at the given compression level.
func NewGzipEncoder(level int) (*GzipEncoder, error) {
	e := &GzipEncoder{}
	zw, err := gzip.NewWriterLevel(&e.out, level)
	if err != nil {
		return nil, fmt.Errorf("%w: gzip level %d", ErrParam, level)
	}
	e.zw = zw
	return e, nil
}

// RequiresNext implements Codec.
func (e *GzipEncoder) RequiresNext() bool { return true }

// Encode implements Codec.
func (e *GzipEncoder) Encode(p []byte, emit Emit) error {
	if e.zw == nil {
		return ErrState
	}
	e.out.emit = emit
	defer func() { e.out.emit = nil }()
	if _, err := e.zw.Write(p); err != nil {
		return fmt.Errorf("transform: gzip: %w", err)
	}
	return nil
}

// End writes the gzip trailer.
func (e *GzipEncoder) End(emit Emit) error {
	if e.zw == nil {
		return nil
	}
	e.out.emit = emit
	err := e.zw.Close()
	e.out.emit = nil
	e.zw = nil
	if err != nil {
		return fmt.Errorf("transform: gzip: %w", err)
	}
	return nil
}

// BrotliEncoder compresses its input into a brotli stream.
type BrotliEncoder struct {
	out emitWriter
	bw  *brotli.Writer
}

// NewBrotliEncoder returns a brotli codec at the given quality level.
func NewBrotliEncoder(level int) (*BrotliEncoder, error) {
	if level < brotli.BestSpeed || level > brotli.BestCompression {
		return nil, fmt.Errorf("%w: brotli level %d", ErrParam, level)
	}
	e := &BrotliEncoder{}
	e.bw = brotli.NewWriterLevel(&e.out, level)
	return e, nil
}

// RequiresNext implements Codec.
func (e *BrotliEncoder) RequiresNext() bool { return true }

// Encode implements Codec.
func (e *BrotliEncoder) Encode(p []byte, emit Emit) error {
	if e.bw == nil {
		return ErrState
	}
	e.out.emit = emit
	defer func() { e.out.emit = nil }()
	if _, err := e.bw.Write(p); err != nil {
		return fmt.Errorf("transform: brotli: %w", err)
	}
	return nil
}

// End flushes and terminates the brotli stream.
func (e *BrotliEncoder) End(emit Emit) error {
	if e.bw == nil {
		return nil
	}
	e.out.emit = emit
	err := e.bw.Close()
	e.out.emit = nil
	e.bw = nil
	if err != nil {
		return fmt.Errorf("transform: brotli: %w", err)
	}
	return nil
}

var (
	_ Codec     = (*GzipEncoder)(nil)
	_ Codec     = (*BrotliEncoder)(nil)
	_ io.Writer = (*emitWriter)(nil)
)
