package similarity

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"
)

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// fitTo returns img scaled to the size of bounds. Images that already match
// are returned unchanged.
func fitTo(img image.Image, bounds image.Rectangle) image.Image {
	if img.Bounds().Dx() == bounds.Dx() && img.Bounds().Dy() == bounds.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// diffResult is a per-pixel comparison of two equally sized images.
type diffResult struct {
	image   *image.RGBA
	changed int
	total   int
}

// pixelDiff compares comparison against baseline, scaling comparison to the
// baseline size first. A pixel differs when any channel differs by more than
// threshold percent of the channel range. Differing pixels are drawn in red
// over a dimmed copy of the baseline.
func pixelDiff(baseline, comparison image.Image, threshold int) diffResult {
	bb := baseline.Bounds()
	comparison = fitTo(comparison, bb)
	cb := comparison.Bounds()

	limit := uint32(clamp(threshold, 0, 100)) * 0xffff / 100
	out := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	res := diffResult{image: out, total: bb.Dx() * bb.Dy()}

	for y := 0; y < bb.Dy(); y++ {
		for x := 0; x < bb.Dx(); x++ {
			r1, g1, b1, a1 := baseline.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			r2, g2, b2, a2 := comparison.At(cb.Min.X+x, cb.Min.Y+y).RGBA()

			if absDiff16(r1, r2) > limit || absDiff16(g1, g2) > limit ||
				absDiff16(b1, b2) > limit || absDiff16(a1, a2) > limit {
				out.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
				res.changed++
				continue
			}
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(r1 >> 8 * 77 / 255),
				G: uint8(g1 >> 8 * 77 / 255),
				B: uint8(b1 >> 8 * 77 / 255),
				A: 255,
			})
		}
	}

	return res
}

func absDiff16(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
