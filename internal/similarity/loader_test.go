package similarity

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadGray_RGBAUsesLuma(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(2, 0, color.RGBA{B: 255, A: 255})

	path := filepath.Join(t.TempDir(), "rgb.png")
	writePNG(t, path, img)

	g, err := LoadGray(path)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 3, 1), g.Bounds())

	// 0.299*255, 0.587*255 and 0.114*255, rounded.
	assert.Equal(t, uint8(76), g.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(150), g.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(29), g.GrayAt(2, 0).Y)
}

func TestLoadGray_GrayPNGRoundTrip(t *testing.T) {
	src := patternGray(11, 7, func(x, y int) int { return x*19 + y*3 })
	path := filepath.Join(t.TempDir(), "gray.png")
	writePNG(t, path, src)

	g, err := LoadGray(path)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, g.Pix)
}

func TestLoadGray_JPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	path := filepath.Join(t.TempDir(), "1.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, src, &jpeg.Options{Quality: 95}))
	require.NoError(t, f.Close())

	g, err := LoadGray(path)
	require.NoError(t, err)
	assert.Equal(t, 16, g.Bounds().Dx())
	assert.Equal(t, 16, g.Bounds().Dy())
	assert.InDelta(t, 200, int(g.GrayAt(8, 8).Y), 3)
}

func TestLoadGray_Missing(t *testing.T) {
	_, err := LoadGray(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoadGray_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "3.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0644))

	_, err := LoadGray(path)
	assert.ErrorIs(t, err, ErrLoad)
}
