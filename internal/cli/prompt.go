package cli

import (
	"errors"
	"sort"

	"github.com/ncruces/zenity"

	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// ErrPickCanceled is returned when the user closes the file dialog.
var ErrPickCanceled = errors.New("file selection canceled")

// PickAudioFile opens a native file dialog filtered to supported audio types.
func PickAudioFile() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select an audio file to transcribe"),
		zenity.FileFilters{{Name: "Audio files", Patterns: audioPatterns()}},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", ErrPickCanceled
	}
	return path, err
}

func audioPatterns() []string {
	patterns := make([]string, 0, len(transcribe.SupportedAudioExtensions))
	for ext := range transcribe.SupportedAudioExtensions {
		patterns = append(patterns, "*"+ext)
	}
	sort.Strings(patterns)
	return patterns
}
