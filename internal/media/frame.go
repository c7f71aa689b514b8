package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strconv"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// EncodePNG renders a grayscale frame as PNG.
func EncodePNG(img *image.Gray) ([]byte, error) {
	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFrame sends a grayscale frame as an image/png response. Frames of a
// session never change, so the response is cacheable for the session's life.
func WriteFrame(w http.ResponseWriter, img *image.Gray) error {
	data, err := EncodePNG(img)
	if err != nil {
		return err
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(data)
	return err
}
