package media

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeVideo(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func serve(t *testing.T, method, path, rangeHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(method, "/video", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rr := httptest.NewRecorder()
	err := NewServer(nil).ServeVideo(rr, req, path)
	return rr, err
}

func TestServeVideo_Full(t *testing.T) {
	data := []byte("0123456789abcdef")
	path := writeVideo(t, "fake.mkv", data)

	rr, err := serve(t, http.MethodGet, path, "")
	if err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !bytes.Equal(rr.Body.Bytes(), data) {
		t.Errorf("body = %q", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "video/x-matroska" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
}

func TestServeVideo_Range(t *testing.T) {
	path := writeVideo(t, "real.mp4", []byte("0123456789abcdef"))

	rr, err := serve(t, http.MethodGet, path, "bytes=4-7")
	if err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rr.Code)
	}
	if rr.Body.String() != "4567" {
		t.Errorf("body = %q, want 4567", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 4-7/16" {
		t.Errorf("Content-Range = %q", got)
	}
	if got := rr.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestServeVideo_Unsatisfiable(t *testing.T) {
	path := writeVideo(t, "real.mp4", []byte("0123"))

	rr, err := serve(t, http.MethodGet, path, "bytes=10-")
	if err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("status = %d, want 416", rr.Code)
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes */4" {
		t.Errorf("Content-Range = %q", got)
	}
}

func TestServeVideo_InvalidRangeServesWhole(t *testing.T) {
	path := writeVideo(t, "real.avi", []byte("0123"))

	rr, err := serve(t, http.MethodGet, path, "chars=0-1")
	if err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "0123" {
		t.Errorf("status = %d body = %q", rr.Code, rr.Body.String())
	}
}

func TestServeVideo_Head(t *testing.T) {
	path := writeVideo(t, "real.mov", []byte("0123456789"))

	rr, err := serve(t, http.MethodHead, path, "")
	if err != nil {
		t.Fatalf("ServeVideo() error = %v", err)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("HEAD body length = %d, want 0", rr.Body.Len())
	}
	if got := rr.Header().Get("Content-Length"); got != "10" {
		t.Errorf("Content-Length = %q, want 10", got)
	}
}

func TestServeVideo_Missing(t *testing.T) {
	rr, err := serve(t, http.MethodGet, filepath.Join(t.TempDir(), "gone.mp4"), "")
	if err != ErrFileNotFound {
		t.Fatalf("error = %v, want ErrFileNotFound", err)
	}
	if rr.Body.Len() != 0 {
		t.Error("nothing should be written for a missing file")
	}
}

func TestContentType(t *testing.T) {
	cases := map[string]string{
		"a.MP4": "video/mp4",
		"a.mov": "video/quicktime",
		"a.avi": "video/x-msvideo",
		"a":     "application/octet-stream",
	}
	for in, want := range cases {
		if got := ContentType(in); got != want {
			t.Errorf("ContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteFrame(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 3))
	img.Pix[7] = 200

	rr := httptest.NewRecorder()
	if err := WriteFrame(rr, img); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	if got := rr.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}

	decoded, err := png.Decode(rr.Body)
	if err != nil {
		t.Fatalf("response is not PNG: %v", err)
	}
	gray, ok := decoded.(*image.Gray)
	if !ok {
		t.Fatalf("decoded %T, want *image.Gray", decoded)
	}
	if gray.Bounds().Dx() != 5 || gray.Bounds().Dy() != 3 || gray.Pix[7] != 200 {
		t.Errorf("decoded frame differs: %v %v", gray.Bounds(), gray.Pix)
	}
}
