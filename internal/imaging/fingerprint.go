package imaging

import (
	"errors"
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Fingerprint is an average hash of an image: the image is scaled to an
// N×N grayscale grid and each cell becomes one bit, set when the cell is
// brighter than the grid mean. Near-identical images share a fingerprint.
type Fingerprint struct {
	hash *goimagehash.ExtImageHash
}

// String returns the hex form ("a:<hex>") used as the set key.
func (f Fingerprint) String() string {
	if f.hash == nil {
		return ""
	}
	return f.hash.ToString()
}

func (f Fingerprint) IsZero() bool { return f.hash == nil }

func (f Fingerprint) Bits() int {
	if f.hash == nil {
		return 0
	}
	return f.hash.Bits()
}

// Distance is the Hamming distance between two fingerprints of the same size.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if f.hash == nil || other.hash == nil {
		return -1, errors.New("distance of empty fingerprint")
	}
	return f.hash.Distance(other.hash)
}

// Hasher computes fingerprints on a GridSize×GridSize grid.
type Hasher struct {
	GridSize int
}

func (h Hasher) Fingerprint(img image.Image) (Fingerprint, error) {
	n := h.GridSize
	if n <= 0 {
		n = 8
	}
	hash, err := goimagehash.ExtAverageHash(img, n, n)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("average hash: %w", err)
	}
	return Fingerprint{hash: hash}, nil
}
