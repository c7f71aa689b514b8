// Package compare pairs frames from two extracted sequences and scores them.
package compare

import (
	"errors"
	"fmt"
	"image"

	"github.com/framecmp/framecmp/internal/similarity"
)

var ErrIndexOutOfRange = errors.New("frame index out of range")

// FrameSequence is the ordered list of extracted frame paths of one video.
// Element i holds frame i+1.
type FrameSequence []string

// Result is the outcome of comparing the frames at one index.
type Result struct {
	Index int
	MSE   float64
	SSIM  float64
	Fake  *image.Gray
	Real  *image.Gray
}

func (r *Result) FormatMSE() string {
	return fmt.Sprintf("%.2f", r.MSE)
}

func (r *Result) FormatSSIM() string {
	return fmt.Sprintf("%.2f", r.SSIM)
}

// MaxIndex returns the largest index that both sequences can serve.
func MaxIndex(fake, real FrameSequence) int {
	return min(len(fake), len(real))
}

// Compare loads frame index (1-based) from both sequences and computes MSE
// and SSIM between them. A load failure on either side is returned as is;
// no partial result is produced.
func Compare(index int, fake, real FrameSequence) (*Result, error) {
	if index < 1 || index > MaxIndex(fake, real) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrIndexOutOfRange, index, MaxIndex(fake, real))
	}

	a, err := similarity.LoadGray(fake[index-1])
	if err != nil {
		return nil, fmt.Errorf("fake frame %d: %w", index, err)
	}
	b, err := similarity.LoadGray(real[index-1])
	if err != nil {
		return nil, fmt.Errorf("real frame %d: %w", index, err)
	}

	return Images(index, a, b)
}

// Images scores two already-loaded frames.
func Images(index int, fake, real *image.Gray) (*Result, error) {
	mse, err := similarity.MSE(fake, real)
	if err != nil {
		return nil, fmt.Errorf("mse: %w", err)
	}
	ssim, err := similarity.SSIM(fake, real)
	if err != nil {
		return nil, fmt.Errorf("ssim: %w", err)
	}

	return &Result{Index: index, MSE: mse, SSIM: ssim, Fake: fake, Real: real}, nil
}
