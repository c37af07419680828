package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/gemini-transcriber/internal/metrics"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// ValidationModel is the model probed by ValidateAPIKey when none is given.
const ValidationModel = "gemini-2.5-flash"

// ValidationError reports why an API key could not be used.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

var (
	badKeyMarker  = regexp.MustCompile(`(?i)api key not valid|invalid api key|api_key_invalid|permission[_ ]denied|unauthenticated`)
	networkMarker = regexp.MustCompile(`(?i)connection|network|timeout|dial|no such host|unreachable`)
)

// ValidateAPIKey makes a one-word generation call with model (ValidationModel
// if empty). It returns nil when the key works, otherwise a *ValidationError.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	if model == "" {
		model = ValidationModel
	}
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	var valErr *ValidationError
	switch {
	case err != nil:
		valErr = classifyError(err)
	case resp == nil || len(resp.Candidates) == 0:
		valErr = &ValidationError{Type: ErrTypeUnknown, Message: "API returned empty response"}
	}

	result := "success"
	if valErr != nil {
		result = valErr.Type.String()
	}
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if valErr != nil {
		log.Error().Err(valErr).Str("result", result).Dur("duration", elapsed).Msg("API key validation failed")
		return valErr
	}
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// classifyError maps a probe failure to a ValidationError. Key problems are
// checked before the generic pipeline classification because Gemini reports
// a bad key as 400 INVALID_ARGUMENT.
func classifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	code, status := 0, ""
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status = apiErr.Code, apiErr.Status
	case errors.As(err, &apiErrPtr):
		code, status = apiErrPtr.Code, apiErrPtr.Status
	}

	text := err.Error()
	switch {
	case code == 401 || code == 403 || badKeyMarker.MatchString(text) || strings.EqualFold(status, "PERMISSION_DENIED"):
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case code >= 500:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error - try again later", Err: err}
	}

	switch transcribe.Classify(err) {
	case transcribe.KindQuotaExceeded:
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API quota exceeded or rate limited", Err: err}
	case transcribe.KindTimeout:
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Timed out reaching the Gemini API", Err: err}
	case transcribe.KindModelUnavailable:
		return &ValidationError{Type: ErrTypeUnknown, Message: "Validation model is not available for this key", Err: err}
	}

	if networkMarker.MatchString(text) {
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Network error - check your internet connection", Err: err}
	}
	return &ValidationError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
}
