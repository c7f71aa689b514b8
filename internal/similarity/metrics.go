// Package similarity implements the frame metrics used by framecmp: mean
// squared error and the structural similarity index over 8-bit grayscale
// images, plus the loader that produces those images from disk.
package similarity

import (
	"errors"
	"image"
)

const (
	// WindowSize is the side length of the square SSIM window.
	WindowSize = 7

	// DynamicRange is the sample range of 8-bit intensity data.
	DynamicRange = 255.0

	k1 = 0.01
	k2 = 0.03
)

var (
	C1 = (k1 * DynamicRange) * (k1 * DynamicRange)
	C2 = (k2 * DynamicRange) * (k2 * DynamicRange)
)

var (
	ErrShapeMismatch = errors.New("images have different dimensions")
	ErrImageTooSmall = errors.New("image smaller than ssim window")
)

// MSE returns the mean of squared per-pixel differences between a and b.
// Samples are widened to float64 before subtraction.
func MSE(a, b *image.Gray) (float64, error) {
	if err := sameShape(a, b); err != nil {
		return 0, err
	}

	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w == 0 || h == 0 {
		return 0, nil
	}

	var sum float64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			d := float64(ra[x]) - float64(rb[x])
			sum += d * d
		}
	}
	return sum / float64(h*w), nil
}

// SSIM returns the mean structural similarity of a and b.
//
// Local statistics come from a WindowSize x WindowSize uniform window with
// sample (N-1) covariance normalisation. The mean is taken over every window
// that lies fully inside the image, which equals cropping (WindowSize-1)/2
// pixels from each border of the full SSIM map.
func SSIM(a, b *image.Gray) (float64, error) {
	if err := sameShape(a, b); err != nil {
		return 0, err
	}

	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w < WindowSize || h < WindowSize {
		return 0, ErrImageTooSmall
	}

	ia := newIntegrals(a)
	ib := newIntegrals(b)
	ixy := newCrossIntegral(a, b)

	const np = WindowSize * WindowSize
	covNorm := float64(np) / float64(np-1)

	var total float64
	count := 0
	for y := 0; y+WindowSize <= h; y++ {
		for x := 0; x+WindowSize <= w; x++ {
			ux := ia.sum.window(x, y) / np
			uy := ib.sum.window(x, y) / np
			uxx := ia.sq.window(x, y) / np
			uyy := ib.sq.window(x, y) / np
			uxy := ixy.window(x, y) / np

			vx := covNorm * (uxx - ux*ux)
			vy := covNorm * (uyy - uy*uy)
			vxy := covNorm * (uxy - ux*uy)

			num := (2*ux*uy + C1) * (2*vxy + C2)
			den := (ux*ux + uy*uy + C1) * (vx + vy + C2)
			total += num / den
			count++
		}
	}
	return total / float64(count), nil
}

func sameShape(a, b *image.Gray) error {
	if a == nil || b == nil {
		return ErrShapeMismatch
	}
	if a.Rect.Dx() != b.Rect.Dx() || a.Rect.Dy() != b.Rect.Dy() {
		return ErrShapeMismatch
	}
	return nil
}
