package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultPollInterval is the fixed delay between state queries.
	DefaultPollInterval = 2 * time.Second
	// DefaultMaxWait bounds the total time spent waiting for a handle to
	// leave processing, status queries included.
	DefaultMaxWait = 5 * time.Minute
)

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller waits for an uploaded handle to leave the processing state.
type Poller struct {
	backend  Backend
	interval time.Duration
	maxWait  time.Duration
	sleep    sleepFunc
}

// NewPoller creates a Poller. Non-positive values select the defaults.
func NewPoller(backend Backend, interval, maxWait time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Poller{
		backend:  backend,
		interval: interval,
		maxWait:  maxWait,
		sleep:    sleepContext,
	}
}

// maxPolls is the number of state queries that fit in the wait bound when
// each query returns immediately.
func (p *Poller) maxPolls() int {
	n := int(p.maxWait / p.interval)
	if p.maxWait%p.interval != 0 {
		n++
	}
	return max(n, 1)
}

// Wait returns handle once it is ready. It returns a ProcessingFailure as
// soon as the backend reports failure and a Timeout once maxWait has elapsed
// (status queries and their retries included) or the context deadline is
// exceeded. It never returns a processing handle.
func (p *Poller) Wait(ctx context.Context, handle *RemoteHandle) (*RemoteHandle, error) {
	start := time.Now()
	limit := p.maxPolls()
	pollIteration := 0

	waitCtx, cancel := context.WithTimeout(ctx, p.maxWait)
	defer cancel()

	for handle.State == StateProcessing {
		if pollIteration >= limit {
			return nil, p.timeout(handle, pollIteration)
		}

		if err := p.sleep(waitCtx, p.interval); err != nil {
			return nil, p.stopped(ctx, handle, pollIteration, err)
		}

		pollIteration++
		state, err := p.backend.Status(waitCtx, handle.ID)
		if err != nil {
			if waitCtx.Err() != nil {
				return nil, p.stopped(ctx, handle, pollIteration, err)
			}
			return nil, newError(KindProcessingFailure, "", err)
		}
		handle.advance(state)

		log.Debug().
			Str("name", handle.ID).
			Str("state", handle.State.String()).
			Int("poll_iteration", pollIteration).
			Msg("Polled Gemini file state")
	}

	if handle.State == StateFailed {
		return nil, newError(KindProcessingFailure, "", fmt.Errorf("Gemini file processing failed: %s", handle.ID))
	}

	log.Info().
		Str("name", handle.ID).
		Int("poll_iterations", pollIteration).
		Dur("wait_duration", time.Since(start)).
		Msg("Audio ready for transcription")

	return handle, nil
}

// stopped maps an interrupted wait: the caller's own cancellation or
// deadline keeps its kind, otherwise maxWait ran out.
func (p *Poller) stopped(ctx context.Context, handle *RemoteHandle, pollIteration int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return newError(Classify(ctxErr), "", err)
	}
	return p.timeout(handle, pollIteration)
}

func (p *Poller) timeout(handle *RemoteHandle, pollIteration int) error {
	log.Warn().
		Str("name", handle.ID).
		Int("poll_iterations", pollIteration).
		Dur("max_wait", p.maxWait).
		Msg("Gave up waiting for Gemini file processing")
	return newError(KindTimeout, "", fmt.Errorf("file %s still processing after %v", handle.ID, p.maxWait))
}
