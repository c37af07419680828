package s3util

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const transcriptContentType = "text/plain; charset=utf-8"

// TranscriptKey builds the object key for a transcript:
// <prefix>/<id>/<source base name>.txt.
func TranscriptKey(prefix, id, sourceName string) string {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "transcript"
	}
	return strings.TrimPrefix(path.Join(prefix, id, base+".txt"), "/")
}

// UploadTranscript stores text as a UTF-8 object and returns its s3:// URI.
func UploadTranscript(ctx context.Context, client ObjectPutter, bucket, key, text string) (string, error) {
	contentType := transcriptContentType
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        strings.NewReader(text),
		ContentType: &contentType,
		Tagging:     ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject s3://%s/%s: %w", bucket, key, err)
	}

	uri := "s3://" + bucket + "/" + key
	log.Info().Str("uri", uri).Int("bytes", len(text)).Msg("Transcript uploaded to S3")
	return uri, nil
}
