// Package encoder serializes canvases to PNG.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
)

// MIMEType is the content type of encoded images.
const MIMEType = "image/png"

// bufferPool lets concurrent encodes share zlib buffers. png.Encoder
// writes no timestamps or text chunks, so output depends only on pixels.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *bufferPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}

var pngEncoder = &png.Encoder{
	CompressionLevel: png.BestCompression,
	BufferPool:       &bufferPool{},
}

// EncodeTo writes img to w as PNG.
func EncodeTo(w io.Writer, img image.Image) error {
	if img == nil {
		return fmt.Errorf("failed to encode png: nil image")
	}
	if err := pngEncoder.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// Encode returns img as PNG bytes.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTo(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
