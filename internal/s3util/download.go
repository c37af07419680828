// Package s3util holds the S3 helpers shared by the CLI and the HTTP
// front end: s3:// URI parsing, download of source audio to a temp file and
// upload of finished transcripts.
package s3util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ObjectGetter is the subset of *s3.Client used for downloads.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectPutter is the subset of *s3.Client used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// IsURI reports whether s looks like an s3://bucket/key location.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseURI splits s3://bucket/key into its parts. The key may be empty
// (a bucket root, used as an upload prefix).
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("not an s3:// URI: %q", uri)
	}
	rest := strings.TrimPrefix(uri, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket in %q", uri)
	}
	return bucket, key, nil
}

// DownloadToTempFile copies an S3 object into a new temp file keeping the
// key's extension, and returns the path and the object's content type.
// The caller owns the file.
func DownloadToTempFile(ctx context.Context, client ObjectGetter, bucket, key string) (path, contentType string, err error) {
	if key == "" {
		return "", "", errors.New("object key is required")
	}
	log.Debug().Str("bucket", bucket).Str("key", key).Msg("Downloading from S3")

	result, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return "", "", fmt.Errorf("S3 GetObject s3://%s/%s: %w", bucket, key, err)
	}
	defer result.Body.Close()

	tmp, err := os.CreateTemp("", "transcribe-s3-*"+filepath.Ext(key))
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	n, copyErr := io.Copy(tmp, result.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	if result.ContentType != nil {
		contentType = *result.ContentType
	}
	log.Info().
		Str("bucket", bucket).
		Str("key", key).
		Int64("bytes", n).
		Str("path", tmp.Name()).
		Msg("Downloaded audio from S3")
	return tmp.Name(), contentType, nil
}
