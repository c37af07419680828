package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/metrics"
)

// DefaultCandidatePause is the delay between a failed candidate and the next.
const DefaultCandidatePause = time.Second

// attempt pairs one candidate model with the uploaded media.
type attempt struct {
	model  string
	handle *RemoteHandle
}

// Executor tries candidate models one after another until one produces a
// transcription. Attempts are never concurrent: a quota failure on one
// candidate has to be seen before deciding whether to try the next, since
// every candidate shares the same credential.
type Executor struct {
	backend Backend
	gate    *Gate
	pause   time.Duration
	sleep   sleepFunc
}

// NewExecutor creates an Executor. gate may be nil; pause < 0 selects
// DefaultCandidatePause and pause == 0 disables the delay.
func NewExecutor(backend Backend, gate *Gate, pause time.Duration) *Executor {
	if pause < 0 {
		pause = DefaultCandidatePause
	}
	return &Executor{
		backend: backend,
		gate:    gate,
		pause:   pause,
		sleep:   sleepContext,
	}
}

// Execute runs the fallback loop against a ready handle. The first success
// wins. QuotaExceeded, Timeout and Canceled stop the loop immediately; any
// other failure moves on to the next candidate. If nothing succeeds the
// error is AllCandidatesFailed wrapping every per-candidate error.
func (e *Executor) Execute(ctx context.Context, handle *RemoteHandle, candidates []string, instruction string) (*Transcript, error) {
	if len(candidates) == 0 {
		return nil, newError(KindAllCandidatesFailed, "", errors.New("no model candidates configured"))
	}

	var failures []error
	var lastKind Kind
	for i, model := range candidates {
		if i > 0 && e.pause > 0 {
			if err := e.sleep(ctx, e.pause); err != nil {
				return nil, newError(Classify(err), model, err)
			}
		}

		text, err := e.try(ctx, attempt{model: model, handle: handle}, instruction)
		if err == nil {
			log.Info().
				Str("model", model).
				Int("candidate", i+1).
				Int("candidates", len(candidates)).
				Int("response_length", len(text)).
				Msg("Transcription succeeded")
			return &Transcript{Model: model, Text: text}, nil
		}

		kind := Classify(err)
		metrics.ObserveAttempt(model, kind.String())

		switch kind {
		case KindQuotaExceeded:
			e.gate.Trip()
			log.Error().Err(err).Str("model", model).Msg("Quota exceeded, skipping remaining candidates")
			return nil, newError(KindQuotaExceeded, model, err)
		case KindTimeout, KindCanceled:
			return nil, newError(kind, model, err)
		}

		log.Warn().
			Err(err).
			Str("model", model).
			Str("kind", kind.String()).
			Int("candidate", i+1).
			Int("candidates", len(candidates)).
			Msg("Model candidate failed, trying next")
		failures = append(failures, fmt.Errorf("%s (%s): %w", model, kind, err))
		lastKind = kind
	}

	return nil, &Error{
		Kind:    KindAllCandidatesFailed,
		Message: allFailedMessage(candidates, lastKind),
		Err:     errors.Join(failures...),
	}
}

// try performs one generation attempt.
func (e *Executor) try(ctx context.Context, a attempt, instruction string) (string, error) {
	if err := e.gate.Acquire(ctx); err != nil {
		return "", err
	}

	log.Debug().Str("model", a.model).Str("uri", a.handle.URI).Msg("Requesting transcription")
	callStart := time.Now()
	text, err := e.backend.Generate(ctx, a.model, a.handle, instruction)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model %s returned an empty transcription", a.model)
	}
	metrics.ObserveAttempt(a.model, "success")
	log.Debug().Str("model", a.model).Dur("duration", time.Since(callStart)).Msg("Gemini API response received")
	return text, nil
}

// allFailedMessage keeps the kind-appropriate hint when only one model was
// tried, which is the common case for an explicit model override.
func allFailedMessage(candidates []string, lastKind Kind) string {
	msg := UserMessage(KindAllCandidatesFailed, "")
	if len(candidates) == 1 {
		return msg + ": " + UserMessage(lastKind, candidates[0])
	}
	return fmt.Sprintf("%s (%d tried)", msg, len(candidates))
}
