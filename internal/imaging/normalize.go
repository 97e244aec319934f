// Package imaging turns raw embedded image streams into cropped,
// fingerprinted images and encodes them for output.
package imaging

import (
	"fmt"
	"image"
	"image/color"

	"pixf/internal/extract"
)

// NormalizedImage is a decoded image trimmed to its content.
type NormalizedImage struct {
	PageIndex   int
	LocalIndex  int
	Name        string      // "<page>_<local>", without extension
	Image       *image.RGBA // cropped pixels
	Fingerprint Fingerprint
	Format      string          // codec the source was decoded with
	Source      image.Rectangle // bounds of the decoded image
	Crop        image.Rectangle // content box inside Source
}

// CandidateName is the output file stem for an image.
func CandidateName(pageIndex, localIndex int) string {
	return fmt.Sprintf("%d_%d", pageIndex, localIndex)
}

// Normalizer decodes, crops and fingerprints raw images. It holds no state
// and is safe for concurrent use.
type Normalizer struct {
	// Background is the padding colour to trim. The zero value means
	// DefaultBackground. Fully transparent pixels are always trimmed.
	Background color.RGBA
	// Tolerance is the per-channel difference still treated as background.
	Tolerance int
	Hasher    Hasher
}

// Normalize returns an error wrapping ErrDecode when the stream could not be
// read from the document or raw.Data is not a readable image.
func (n Normalizer) Normalize(raw extract.RawImage) (*NormalizedImage, error) {
	if raw.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, raw.Err)
	}
	decoded, format, err := Decode(raw.Data)
	if err != nil {
		return nil, err
	}

	src := decoded.Bounds()
	rgba := toRGBA(decoded, src)
	bg := n.Background
	if bg == (color.RGBA{}) {
		bg = DefaultBackground
	}
	box := ContentBounds(rgba, bg, n.Tolerance)
	cropped := Crop(rgba, box)

	fp, err := n.Hasher.Fingerprint(cropped)
	if err != nil {
		return nil, fmt.Errorf("fingerprint %s: %w", CandidateName(raw.PageIndex, raw.LocalIndex), err)
	}

	return &NormalizedImage{
		PageIndex:   raw.PageIndex,
		LocalIndex:  raw.LocalIndex,
		Name:        CandidateName(raw.PageIndex, raw.LocalIndex),
		Image:       cropped,
		Fingerprint: fp,
		Format:      format,
		Source:      src,
		Crop:        box.Add(src.Min),
	}, nil
}
