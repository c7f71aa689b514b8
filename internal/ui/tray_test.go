package ui

import (
	"bytes"
	"image/png"
	"testing"
)

func TestIconBytes(t *testing.T) {
	data := iconBytes()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("icon is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != iconSize || b.Dy() != iconSize {
		t.Errorf("icon size = %v", b)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("icon corner should be transparent")
	}
}

func TestLabels(t *testing.T) {
	if pauseLabel(false) != "Pause cleanup" || pauseLabel(true) != "Resume cleanup" {
		t.Error("pause labels wrong")
	}
	if statusLabel(true) != "Status: Cleanup paused" || statusLabel(false) != "Status: Idle" {
		t.Error("status labels wrong")
	}
}
