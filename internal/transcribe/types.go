// Package transcribe turns an uploaded audio file into text by delegating the
// speech-to-text work to Gemini.
//
// A run is strictly sequential: the local file is uploaded through the Files
// API, the remote handle is polled until the backend reports it ready, and
// then each candidate model is asked for a transcription in priority order
// until one succeeds. Failures are classified into a small set of kinds so the
// fallback loop can tell "try the next model" apart from "stop everything"
// (quota exhaustion). The local file is always removed before Run returns.
package transcribe

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// State is the processing state of an uploaded file on the backend.
type State int

const (
	// StateProcessing means the backend is still ingesting the media.
	StateProcessing State = iota
	// StateReady means the media can be referenced by generation calls.
	StateReady
	// StateFailed means the backend rejected the media.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateProcessing:
		return "processing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// MediaAsset is the local audio file for one run. The pipeline owns it from
// the moment Run is called and removes it exactly once.
type MediaAsset struct {
	Path     string
	MIMEType string
	Filename string

	releaseOnce sync.Once
	releaseErr  error
}

// NewMediaAsset describes a local file. filename is the caller-facing name
// (e.g. the multipart filename) and is used as the remote display name.
func NewMediaAsset(path, mimeType, filename string) *MediaAsset {
	return &MediaAsset{Path: path, MIMEType: mimeType, Filename: filename}
}

// Release deletes the local file. Only the first call touches the disk;
// later calls return the first call's result.
func (a *MediaAsset) Release() error {
	a.releaseOnce.Do(func() {
		err := os.Remove(a.Path)
		if err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", a.Path).Msg("Failed to remove local media file")
			a.releaseErr = err
			return
		}
		log.Debug().Str("path", a.Path).Msg("Local media file removed")
	})
	return a.releaseErr
}

// RemoteHandle references media uploaded to the backend. MIMEType is the
// backend's own normalisation and may differ from the asset's.
type RemoteHandle struct {
	ID       string
	URI      string
	MIMEType string
	State    State
}

// advance moves the handle to next. Terminal states never change and the
// state never moves back to processing.
func (h *RemoteHandle) advance(next State) bool {
	if h.State.Terminal() || next < h.State {
		return false
	}
	h.State = next
	return true
}

// Transcript is a successful run: the winning model and its text.
type Transcript struct {
	Model string `json:"model"`
	Text  string `json:"transcription"`
}
