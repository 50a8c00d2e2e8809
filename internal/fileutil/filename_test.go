package fileutil

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"speech.wav", "speech.wav"},
		{"my recording.mp3", "my_recording.mp3"},
		{"../../etc/passwd", "passwd"},
		{`..\..\windows\system32\evil.wav`, "evil.wav"},
		{"/absolute/path/a.ogg", "a.ogg"},
		{".hidden.wav", "hidden.wav"},
		{"..", "audio"},
		{"", "audio"},
		{`we"ird:na*me?.m4a`, "we_ird_na_me_.m4a"},
	}
	for _, c := range cases {
		if got := SanitizeFilename(c.in); got != c.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeFilenameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 300) + ".wav"
	got := SanitizeFilename(long)
	if len(got) > 100 {
		t.Errorf("sanitized name too long: %d chars", len(got))
	}
	if !strings.HasSuffix(got, ".wav") {
		t.Errorf("extension lost during truncation: %q", got)
	}
}

func TestAllowedExtension(t *testing.T) {
	allowed := []string{"wav", "mp3", "m4a", "ogg"}

	yes := []string{"a.wav", "a.WAV", "b.Mp3", "c.m4a", "d.ogg", "weird.name.ogg"}
	for _, n := range yes {
		if !AllowedExtension(n, allowed) {
			t.Errorf("AllowedExtension(%q) = false, want true", n)
		}
	}

	no := []string{"a.flac", "a.txt", "noext", "a.wav.exe", "", ".wav2"}
	for _, n := range no {
		if AllowedExtension(n, allowed) {
			t.Errorf("AllowedExtension(%q) = true, want false", n)
		}
	}
}
