package transcribe

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultAudioMIMEType is the best guess used when nothing better is known.
const DefaultAudioMIMEType = "audio/mp3"

// SupportedAudioExtensions maps file extensions to the MIME types Gemini
// accepts for audio input.
var SupportedAudioExtensions = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".m4a":  "audio/aac",
	".aiff": "audio/aiff",
	".aif":  "audio/aiff",
	".webm": "audio/webm",
}

// ambiguousTypes are generic values browsers and OSes send for audio they
// cannot identify, mapped to a concrete substitute ("" means guess).
var ambiguousTypes = map[string]string{
	"":                         "",
	"application/octet-stream": DefaultAudioMIMEType,
	"binary/octet-stream":      DefaultAudioMIMEType,
	"application/ogg":          "audio/ogg",
	"video/ogg":                "audio/ogg",
	"audio/mpeg":               "audio/mp3",
	"audio/x-wav":              "audio/wav",
	"audio/wave":               "audio/wav",
	"audio/x-m4a":              "audio/aac",
	"audio/mp4":                "audio/aac",
}

// NormalizeMediaType returns a concrete audio MIME type for declared.
// Generic or empty declarations are replaced by a guess from the filename's
// extension, falling back to DefaultAudioMIMEType.
func NormalizeMediaType(declared, filename string) string {
	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	substitute, ambiguous := ambiguousTypes[mediaType]
	if !ambiguous {
		return mediaType
	}

	if mediaType == "" || mediaType == "application/octet-stream" || mediaType == "binary/octet-stream" {
		if guess, ok := SupportedAudioExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
			return guess
		}
	}
	if substitute == "" {
		return DefaultAudioMIMEType
	}
	return substitute
}

// IsAudioExtension reports whether ext (with leading dot) is a supported audio file.
func IsAudioExtension(ext string) bool {
	_, ok := SupportedAudioExtensions[strings.ToLower(ext)]
	return ok
}
