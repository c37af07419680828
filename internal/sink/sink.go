// Package sink delivers a finished transcript somewhere durable.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/s3util"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// Sink stores a transcript and returns where it went.
type Sink interface {
	Write(ctx context.Context, id, sourceName string, t *transcribe.Transcript) (string, error)
}

// FileSink writes the transcript text to a fixed local path.
type FileSink struct {
	Path string
}

// Write creates or truncates the file and returns its absolute path.
func (s FileSink) Write(_ context.Context, _, _ string, t *transcribe.Transcript) (string, error) {
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if dir := filepath.Dir(abs); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(abs, []byte(t.Text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	log.Debug().Str("path", abs).Int("bytes", len(t.Text)).Msg("Transcript written")
	return abs, nil
}

// S3Sink uploads the transcript under Prefix/<id>/<source>.txt in Bucket.
type S3Sink struct {
	Client s3util.ObjectPutter
	Bucket string
	Prefix string
}

// Write uploads the transcript and returns its s3:// URI.
func (s S3Sink) Write(ctx context.Context, id, sourceName string, t *transcribe.Transcript) (string, error) {
	if s.Bucket == "" {
		return "", errors.New("s3 sink: bucket is required")
	}
	key := s3util.TranscriptKey(s.Prefix, id, sourceName)
	return s3util.UploadTranscript(ctx, s.Client, s.Bucket, key, t.Text)
}

// Multi writes to every sink in order and stops at the first failure.
type Multi []Sink

// Write returns the locations of every sink that succeeded, joined by ", ".
func (m Multi) Write(ctx context.Context, id, sourceName string, t *transcribe.Transcript) (string, error) {
	var locations string
	for _, s := range m {
		loc, err := s.Write(ctx, id, sourceName, t)
		if err != nil {
			return locations, err
		}
		if locations != "" {
			locations += ", "
		}
		locations += loc
	}
	return locations, nil
}
