package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Backend is the remote generative-AI service as the pipeline sees it.
// Implementations must be safe for concurrent use by independent runs.
type Backend interface {
	// Upload sends the media and returns the backend's immediate view of it.
	Upload(ctx context.Context, r io.Reader, mimeType, displayName string) (*RemoteHandle, error)
	// Status reports the current processing state of an uploaded file.
	Status(ctx context.Context, id string) (State, error)
	// Generate asks model to follow instruction against the uploaded media.
	Generate(ctx context.Context, model string, handle *RemoteHandle, instruction string) (string, error)
	// Delete removes an uploaded file from the backend.
	Delete(ctx context.Context, id string) error
}

// GeminiBackend implements Backend with the Gemini Files and Models APIs.
type GeminiBackend struct {
	client *genai.Client

	// StatusRetryWindow bounds how long a failing status query is retried
	// before the error is surfaced to the poller.
	StatusRetryWindow time.Duration
}

// Compile-time interface check.
var _ Backend = (*GeminiBackend)(nil)

// NewGeminiClient creates a Gemini API client for the given key.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiBackend wraps an existing client.
func NewGeminiBackend(client *genai.Client) *GeminiBackend {
	return &GeminiBackend{
		client:            client,
		StatusRetryWindow: 15 * time.Second,
	}
}

func (g *GeminiBackend) Upload(ctx context.Context, r io.Reader, mimeType, displayName string) (*RemoteHandle, error) {
	file, err := g.client.Files.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return &RemoteHandle{
		ID:       file.Name,
		URI:      file.URI,
		MIMEType: file.MIMEType,
		State:    stateFromGemini(file.State),
	}, nil
}

// Status queries the file state. Server-side and network errors are retried
// with exponential backoff; 4xx responses are returned immediately.
func (g *GeminiBackend) Status(ctx context.Context, id string) (State, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = g.StatusRetryWindow

	var state State
	attempt := 0
	op := func() error {
		attempt++
		file, err := g.client.Files.Get(ctx, id, nil)
		if err != nil {
			if code, _, ok := apiErrorStatus(err); ok && code >= 400 && code < 500 {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			log.Debug().Err(err).Str("name", id).Int("attempt", attempt).Msg("File state query failed, retrying")
			return err
		}
		state = stateFromGemini(file.State)
		if state == StateFailed && file.Error != nil && file.Error.Message != "" {
			log.Warn().Str("name", id).Str("reason", file.Error.Message).Msg("Gemini reported file processing failure")
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return StateProcessing, fmt.Errorf("get file state: %w", err)
	}
	return state, nil
}

func (g *GeminiBackend) Generate(ctx context.Context, model string, handle *RemoteHandle, instruction string) (string, error) {
	parts := []*genai.Part{
		{
			FileData: &genai.FileData{
				MIMEType: handle.MIMEType,
				FileURI:  handle.URI,
			},
		},
		{Text: instruction},
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}
	if resp == nil {
		return "", errors.New("received empty response from Gemini API")
	}
	return resp.Text(), nil
}

func (g *GeminiBackend) Delete(ctx context.Context, id string) error {
	if _, err := g.client.Files.Delete(ctx, id, nil); err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}

// stateFromGemini maps the Files API state. Unspecified is treated as still
// processing; the poller's wait bound keeps that from looping forever.
func stateFromGemini(s genai.FileState) State {
	switch s {
	case genai.FileStateActive:
		return StateReady
	case genai.FileStateFailed:
		return StateFailed
	default:
		return StateProcessing
	}
}
