package transcribe

import "testing"

func TestNormalizeMediaType(t *testing.T) {
	tests := []struct {
		declared, filename, want string
	}{
		{"application/octet-stream", "", "audio/mp3"},
		{"application/octet-stream", "clip.m4a", "audio/aac"},
		{"", "lecture.FLAC", "audio/flac"},
		{"", "notes.txt", "audio/mp3"},
		{"application/ogg", "a.mp3", "audio/ogg"},
		{"audio/mpeg", "a.mp3", "audio/mp3"},
		{"audio/wav", "a.mp3", "audio/wav"},
		{"Audio/WebM; codecs=opus", "rec.webm", "audio/webm"},
	}
	for _, tt := range tests {
		if got := NormalizeMediaType(tt.declared, tt.filename); got != tt.want {
			t.Errorf("NormalizeMediaType(%q, %q) = %q, want %q", tt.declared, tt.filename, got, tt.want)
		}
	}
}

func TestIsAudioExtension(t *testing.T) {
	if !IsAudioExtension(".MP3") {
		t.Error("expected .MP3 to be audio")
	}
	if IsAudioExtension(".jpg") {
		t.Error("expected .jpg not to be audio")
	}
}
