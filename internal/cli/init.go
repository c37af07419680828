// Package cli holds helpers shared by the command-line binaries.
package cli

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-transcriber/internal/auth"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// InitGeminiClient resolves the API key and creates a client. When
// validateModel is non-empty the key is probed against that model first.
// Any failure exits the process with status 1.
func InitGeminiClient(ctx context.Context, validateModel string) (string, *genai.Client) {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		HandleValidationError(&auth.ValidationError{Type: auth.ErrTypeNoKey, Message: "no API key", Err: err})
	}

	client, err := transcribe.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	log.Debug().Msg("Gemini client initialized")

	if validateModel != "" {
		if err := auth.ValidateAPIKey(ctx, client, validateModel); err != nil {
			HandleValidationError(err)
		}
	}
	return apiKey, client
}

// HandleValidationError logs a user-facing message for err and exits 1.
func HandleValidationError(err error) {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		log.Fatal().Err(err).Msg("Unexpected error during API key validation")
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		log.Fatal().Msg("No API key configured. Set " + auth.EnvAPIKey + " or store it in ~/.gemini-transcriber/credentials.gpg")
	case auth.ErrTypeInvalidKey:
		log.Fatal().Err(err).Msg("Invalid API key. Please check your API key and try again")
	case auth.ErrTypeNetworkError:
		log.Fatal().Err(err).Msg("Network error. Please check your internet connection")
	case auth.ErrTypeQuotaExceeded:
		log.Fatal().Err(err).Msg("API quota exceeded. Please try again later or check your usage limits")
	default:
		log.Fatal().Err(err).Msg("API key validation failed")
	}
}
