// Package fingerprint computes perceptual hashes of frames.
package fingerprint

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// Hash is a 64-bit perceptual fingerprint.
type Hash uint64

// Func maps frames to fingerprints and measures how far apart two fingerprints are.
// Distance must be non-negative and 0 for identical fingerprints.
type Func interface {
	Fingerprint(img image.Image) (Hash, error)
	Distance(a, b Hash) int
}

// PHash is the DCT-based perceptual hash.
type PHash struct{}

var _ Func = PHash{}

// Fingerprint hashes img.
func (PHash) Fingerprint(img image.Image) (Hash, error) {
	if img == nil {
		return 0, fmt.Errorf("fingerprint: nil image")
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return 0, fmt.Errorf("fingerprint: %w", err)
	}
	return Hash(h.GetHash()), nil
}

// Distance is the Hamming distance between two hashes.
func (PHash) Distance(a, b Hash) int {
	d, err := goimagehash.NewImageHash(uint64(a), goimagehash.PHash).
		Distance(goimagehash.NewImageHash(uint64(b), goimagehash.PHash))
	if err != nil {
		// Both hashes are built with the same kind above
		panic(err)
	}
	return d
}
