package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 22

var (
	iconOnce sync.Once
	iconPNG  []byte
)

// iconBytes draws the tray glyph: two grey panes side by side, one darker,
// standing for the two frames being compared.
func iconBytes() []byte {
	iconOnce.Do(func() {
		img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
		left := color.NRGBA{R: 90, G: 90, B: 90, A: 255}
		right := color.NRGBA{R: 190, G: 190, B: 190, A: 255}

		for y := 4; y < iconSize-4; y++ {
			for x := 2; x < iconSize/2-1; x++ {
				img.SetNRGBA(x, y, left)
			}
			for x := iconSize/2 + 1; x < iconSize-2; x++ {
				img.SetNRGBA(x, y, right)
			}
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			iconPNG = buf.Bytes()
		}
	})
	return iconPNG
}
