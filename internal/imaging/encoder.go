package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"sync"

	"github.com/chai2010/webp"
)

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer for encoding. Hand it back with PutBuffer.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer resets buf and returns it to the pool.
func PutBuffer(buf *bytes.Buffer) {
	buf.Reset()
	bufferPool.Put(buf)
}

// Encoder writes an image in one fixed output format.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	Extension() string
}

// PNGEncoder writes PNG at best compression, keeping the alpha channel.
type PNGEncoder struct{}

func (e PNGEncoder) Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

func (e PNGEncoder) Extension() string { return ".png" }

// WebPEncoder writes lossless WebP, keeping the alpha channel.
type WebPEncoder struct{}

func (e WebPEncoder) Encode(w io.Writer, img image.Image) error {
	return webp.Encode(w, img, &webp.Options{
		Lossless: true,
		Quality:  100,
	})
}

func (e WebPEncoder) Extension() string { return ".webp" }

var encoderRegistry = map[string]Encoder{
	"png":  PNGEncoder{},
	"webp": WebPEncoder{},
}

// GetEncoder returns the encoder for format ("webp" or "png", case and a
// leading dot ignored).
func GetEncoder(format string) (Encoder, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	encoder, ok := encoderRegistry[format]
	if !ok {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return encoder, nil
}

// toRGBA copies r of img into a new RGBA whose bounds start at the origin.
func toRGBA(img image.Image, r image.Rectangle) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && r == rgba.Bounds() && r.Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
