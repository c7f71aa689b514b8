package similarity

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// ErrLoad reports a frame that is missing or cannot be decoded as an image.
var ErrLoad = errors.New("cannot load image")

// LoadGray decodes the still image at path and converts it to 8-bit luma.
// The conversion uses the BT.601 weights (0.299, 0.587, 0.114).
func LoadGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	return ToGray(img), nil
}

// ToGray returns img as a zero-origin *image.Gray.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()

	// JPEG frames decode to YCbCr whose Y plane is already BT.601 luma.
	if yc, ok := img.(*image.YCbCr); ok {
		g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			off := yc.YOffset(b.Min.X, b.Min.Y+y)
			copy(g.Pix[y*g.Stride:y*g.Stride+b.Dx()], yc.Y[off:off+b.Dx()])
		}
		return g
	}

	if g, ok := img.(*image.Gray); ok && b.Min == (image.Point{}) {
		return g
	}

	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.SetGray(x, y, color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray))
		}
	}
	return g
}
