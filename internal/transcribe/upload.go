package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultDisplayName = "Audio Transcription"

// Uploader pushes a local asset to the backend. It never retries.
type Uploader struct {
	backend Backend
	gate    *Gate
}

// NewUploader creates an Uploader. gate may be nil.
func NewUploader(backend Backend, gate *Gate) *Uploader {
	return &Uploader{backend: backend, gate: gate}
}

// Upload streams asset to the backend declared as mediaType. The file is
// fully read before Upload returns. Every failure is an UploadFailure.
func (u *Uploader) Upload(ctx context.Context, asset *MediaAsset, mediaType string) (*RemoteHandle, error) {
	if mediaType == "" {
		return nil, newError(KindUploadFailure, "", errors.New("media type is required"))
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, newError(KindUploadFailure, "", fmt.Errorf("open file: %w", err))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, newError(KindUploadFailure, "", fmt.Errorf("stat file: %w", err))
	}
	if info.IsDir() {
		return nil, newError(KindUploadFailure, "", fmt.Errorf("path is a directory: %s", asset.Path))
	}

	if err := u.gate.Acquire(ctx); err != nil {
		return nil, err
	}

	displayName := asset.Filename
	if displayName == "" {
		displayName = defaultDisplayName
	}

	log.Debug().
		Str("path", asset.Path).
		Int64("size_bytes", info.Size()).
		Str("mime_type", mediaType).
		Msg("Starting Gemini Files API upload")

	uploadStart := time.Now()
	handle, err := u.backend.Upload(ctx, f, mediaType, displayName)
	if err != nil {
		if Classify(err) == KindQuotaExceeded {
			u.gate.Trip()
		}
		log.Error().Err(err).Str("path", asset.Path).Msg("Upload to Gemini failed")
		return nil, newError(KindUploadFailure, "", err)
	}

	log.Info().
		Str("name", handle.ID).
		Str("uri", handle.URI).
		Str("state", handle.State.String()).
		Dur("upload_duration", time.Since(uploadStart)).
		Msg("Audio uploaded to Gemini")

	return handle, nil
}
