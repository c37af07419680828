package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrInputNotFound is returned when the input audio file does not exist.
var ErrInputNotFound = errors.New("input file not found")

// ResolveInputFile checks that path is an existing regular file and returns
// its absolute form.
func ResolveInputFile(path string) (string, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, expected an audio file", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

// StageCopy copies path into a new temp file with the same extension. The
// pipeline deletes its input, so the CLI hands it a copy and the user's
// original is left alone.
func StageCopy(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open input: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "transcribe-*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("stage input: %w", err)
	}
	return dst.Name(), nil
}
