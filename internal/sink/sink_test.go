package sink

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

type fakePutter struct {
	key  string
	body string
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	data, _ := io.ReadAll(in.Body)
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

var transcript = &transcribe.Transcript{Model: "gemini-2.5-flash", Text: "Hare Krishna"}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "transcript.txt")

	loc, err := FileSink{Path: path}.Write(context.Background(), "id", "a.mp3", transcript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(loc) {
		t.Errorf("expected absolute path, got %s", loc)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "Hare Krishna" {
		t.Errorf("unexpected file contents %q (%v)", data, err)
	}
}

func TestS3Sink(t *testing.T) {
	client := &fakePutter{}
	loc, err := S3Sink{Client: client, Bucket: "out", Prefix: "transcripts"}.Write(context.Background(), "run-1", "/tmp/talk.mp3", transcript)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != "s3://out/transcripts/run-1/talk.txt" {
		t.Errorf("unexpected location %s", loc)
	}
	if client.body != "Hare Krishna" {
		t.Errorf("unexpected body %q", client.body)
	}

	if _, err := (S3Sink{Client: client}).Write(context.Background(), "id", "a.mp3", transcript); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestMulti_StopsOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.txt")
	failing := &fakePutter{err: errors.New("AccessDenied")}

	loc, err := Multi{FileSink{Path: path}, S3Sink{Client: failing, Bucket: "b"}}.Write(context.Background(), "id", "a.mp3", transcript)
	if err == nil {
		t.Fatal("expected error from failing sink")
	}
	if loc == "" {
		t.Error("expected the file location to be reported")
	}
}
