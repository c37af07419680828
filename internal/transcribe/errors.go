package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// Kind categorizes a pipeline failure. The fallback loop only needs to know
// whether a kind is QuotaExceeded; the rest drive caller-facing messages and
// HTTP status codes.
type Kind int

const (
	// KindTransient is anything not recognised as one of the other kinds.
	KindTransient Kind = iota
	// KindUploadFailure means the media could not be sent to the backend.
	KindUploadFailure
	// KindProcessingFailure means the backend rejected the media after upload.
	KindProcessingFailure
	// KindQuotaExceeded means the credential hit a rate or quota limit.
	KindQuotaExceeded
	// KindModelUnavailable means the model does not exist for this key/region.
	KindModelUnavailable
	// KindInvalidInput means the backend considers the media malformed or unsupported.
	KindInvalidInput
	// KindAllCandidatesFailed means every candidate model failed.
	KindAllCandidatesFailed
	// KindTimeout means the media never became ready within the allowed wait.
	KindTimeout
	// KindCanceled means the caller gave up on the run.
	KindCanceled
)

var kindNames = map[Kind]string{
	KindTransient:           "transient",
	KindUploadFailure:       "upload_failure",
	KindProcessingFailure:   "processing_failure",
	KindQuotaExceeded:       "quota_exceeded",
	KindModelUnavailable:    "model_unavailable",
	KindInvalidInput:        "invalid_input",
	KindAllCandidatesFailed: "all_candidates_failed",
	KindTimeout:             "timeout",
	KindCanceled:            "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus maps a kind to the status code the HTTP front end responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindInvalidInput, KindProcessingFailure:
		return http.StatusUnprocessableEntity
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUploadFailure, KindAllCandidatesFailed, KindModelUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type Pipeline.Run returns. Message is safe to show
// to callers; Err holds the raw backend error for logging.
type Error struct {
	Kind    Kind
	Message string
	Model   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an Error with the standard message for kind.
func newError(kind Kind, model string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: UserMessage(kind, model),
		Model:   model,
		Err:     err,
	}
}

// KindOf returns the kind of a pipeline error, classifying it if it is not
// already an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return Classify(err)
}

// UserMessage is the short caller-facing text for a kind. It never includes
// raw backend output.
func UserMessage(kind Kind, model string) string {
	switch kind {
	case KindQuotaExceeded:
		return "Quota limit reached (429): the backend is temporarily rejecting requests, wait a minute and try again"
	case KindModelUnavailable:
		if model != "" {
			return fmt.Sprintf("Model '%s' is not available for this key or region, try another model", model)
		}
		return "The requested model is not available for this key or region"
	case KindInvalidInput:
		return "Invalid or unsupported audio format"
	case KindUploadFailure:
		return "Failed to upload the audio to the transcription backend"
	case KindProcessingFailure:
		return "The backend failed to process the audio"
	case KindAllCandidatesFailed:
		return "All model candidates failed"
	case KindTimeout:
		return "Timed out waiting for the backend to process the audio"
	case KindCanceled:
		return "Transcription canceled"
	default:
		return "Transcription failed, try again later"
	}
}

var (
	quotaMarker   = regexp.MustCompile(`\b429\b|resource[_ ]exhausted|quota|rate[ -]?limit|too many requests`)
	notFoundMark  = regexp.MustCompile(`\b404\b|not[_ ]found|is not supported for generatecontent|model .* not available`)
	invalidMarker = regexp.MustCompile(`\b400\b|invalid[_ ]argument|unsupported (mime|file|media|audio)|invalid (mime|file|media|audio)`)
)

// Classify maps a raw failure to a Kind. It is a pure function of the error's
// status code and text.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}

	if code, status, ok := apiErrorStatus(err); ok {
		if kind := classifyCode(code, status); kind != KindTransient {
			return kind
		}
	}

	return ClassifyStatus(0, err.Error())
}

// ClassifyStatus classifies a status code and diagnostic text. A zero code
// means "unknown" and classification falls back to the text alone. Quota
// markers are checked first so a quota message that also mentions a model
// name is never mistaken for ModelUnavailable.
func ClassifyStatus(code int, text string) Kind {
	if kind := classifyCode(code, ""); kind != KindTransient {
		return kind
	}

	lower := strings.ToLower(text)
	switch {
	case quotaMarker.MatchString(lower):
		return KindQuotaExceeded
	case notFoundMark.MatchString(lower):
		return KindModelUnavailable
	case invalidMarker.MatchString(lower):
		return KindInvalidInput
	default:
		return KindTransient
	}
}

func classifyCode(code int, status string) Kind {
	status = strings.ToUpper(status)
	switch {
	case code == http.StatusTooManyRequests || strings.Contains(status, "RESOURCE_EXHAUSTED"):
		return KindQuotaExceeded
	case code == http.StatusNotFound || strings.Contains(status, "NOT_FOUND"):
		return KindModelUnavailable
	case code == http.StatusBadRequest || strings.Contains(status, "INVALID_ARGUMENT"):
		return KindInvalidInput
	default:
		return KindTransient
	}
}

// apiErrorStatus extracts the HTTP code and status text from a Gemini API
// error. The SDK returns APIError by value; a pointer is accepted as well.
func apiErrorStatus(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}
