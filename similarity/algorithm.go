package similarity

import (
	"fmt"
	"image"
	"math"

	"github.com/corona10/goimagehash"
)

// Algorithm scores two decoded screenshots from 0 (different) to 100
// (identical).
type Algorithm interface {
	Name() string
	Score(baseline, comparison image.Image) (int, error)
}

// hashBits is the length of the perceptual hash.
const hashBits = 64

// PerceptualHash scores images by the Hamming distance of their 64-bit
// perceptual hashes.
type PerceptualHash struct{}

func (PerceptualHash) Name() string { return "HASH" }

func (PerceptualHash) Score(baseline, comparison image.Image) (int, error) {
	h1, err := goimagehash.PerceptionHash(baseline)
	if err != nil {
		return 0, fmt.Errorf("failed to hash baseline: %w", err)
	}
	h2, err := goimagehash.PerceptionHash(comparison)
	if err != nil {
		return 0, fmt.Errorf("failed to hash comparison: %w", err)
	}

	distance, err := h1.Distance(h2)
	if err != nil {
		return 0, fmt.Errorf("failed to compute hash distance: %w", err)
	}
	return HashScore(distance), nil
}

// HashScore converts a Hamming distance between 64-bit hashes into a
// similarity percentage.
func HashScore(distance int) int {
	distance = clamp(distance, 0, hashBits)
	return int(math.Round(float64(hashBits-distance) / hashBits * 100))
}

// PixelDifference scores images by the fraction of pixels that differ by
// more than Threshold percent in any channel.
type PixelDifference struct {
	Threshold int
}

func (PixelDifference) Name() string { return "PIXEL" }

func (p PixelDifference) Score(baseline, comparison image.Image) (int, error) {
	res := pixelDiff(baseline, comparison, p.Threshold)
	return PixelScore(res.changed, res.total), nil
}

// PixelScore converts a count of differing pixels into a similarity
// percentage.
func PixelScore(changed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(changed)/float64(total)) * 100))
}
