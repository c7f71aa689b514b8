package session

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"../../etc/passwd.mp4", "passwd.mp4"},
		{`C:\Users\me\take (2).mov`, "take (2).mov"},
		{"bad<>|\"name.mkv", "bad____name.mkv"},
		{" A\nB\tC.avi ", "ABC.avi"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in, 100); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename_MaxLength(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("é", 50)+".mp4", 10)
	if len([]rune(got)) != 10 {
		t.Fatalf("expected 10 runes, got %d (%q)", len([]rune(got)), got)
	}
}

func TestIsVideoFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.mp4": true, "a.AVI": true, "a.mov": true, "a.mkv": true,
		"a.webm": false, "a": false, "mp4": false,
	} {
		if got := IsVideoFile(name); got != want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("REAL"); !ok || k != KindReal {
		t.Errorf("ParseKind(REAL) = %v, %v", k, ok)
	}
	if _, ok := ParseKind("other"); ok {
		t.Error("ParseKind(other) should fail")
	}
}
