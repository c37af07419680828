package transcribe

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/metrics"
)

// Pipeline composes upload, readiness polling and the model fallback loop
// into one run. A Pipeline holds only read-only configuration and may be
// shared by concurrent runs.
type Pipeline struct {
	backend      Backend
	gate         *Gate
	instruction  string
	candidates   []string
	pollInterval time.Duration
	maxWait      time.Duration
	pause        time.Duration
	deleteRemote bool
	sleep        sleepFunc
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithInstruction sets the generation prompt.
func WithInstruction(instruction string) Option {
	return func(p *Pipeline) { p.instruction = instruction }
}

// WithCandidates sets the ordered candidate model list. The slice is copied.
func WithCandidates(models ...string) Option {
	return func(p *Pipeline) { p.candidates = append([]string(nil), models...) }
}

// WithPollInterval sets the delay between readiness queries.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.pollInterval = d }
}

// WithMaxWait bounds how long the media may stay in processing.
func WithMaxWait(d time.Duration) Option {
	return func(p *Pipeline) { p.maxWait = d }
}

// WithCandidatePause sets the delay between failed candidates (0 disables it).
func WithCandidatePause(d time.Duration) Option {
	return func(p *Pipeline) { p.pause = d }
}

// WithGate shares a rate-limiting gate with other pipelines using the same credential.
func WithGate(g *Gate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithDeleteRemote removes the uploaded media from the backend after the run.
func WithDeleteRemote(enabled bool) Option {
	return func(p *Pipeline) { p.deleteRemote = enabled }
}

// New creates a Pipeline over backend.
func New(backend Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:      backend,
		pollInterval: DefaultPollInterval,
		maxWait:      DefaultMaxWait,
		pause:        DefaultCandidatePause,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	metrics.RegisterModels(p.candidates...)
	return p
}

// Candidates returns a copy of the configured candidate list.
func (p *Pipeline) Candidates() []string {
	return append([]string(nil), p.candidates...)
}

// With returns a copy of p with opts applied, used for per-request overrides.
// Candidates set here are not registered as metric labels.
func (p *Pipeline) With(opts ...Option) *Pipeline {
	cp := *p
	cp.candidates = append([]string(nil), p.candidates...)
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Run transcribes asset. The local file is removed before Run returns on
// every path. A non-nil error is always an *Error.
func (p *Pipeline) Run(ctx context.Context, asset *MediaAsset) (transcript *Transcript, err error) {
	defer asset.Release()

	runStart := time.Now()
	mediaType := NormalizeMediaType(asset.MIMEType, asset.Filename)

	log.Info().
		Str("file", asset.Filename).
		Str("declared_type", asset.MIMEType).
		Str("mime_type", mediaType).
		Strs("candidates", p.candidates).
		Msg("Starting transcription")

	defer func() {
		p.observe(transcript, err, time.Since(runStart))
	}()

	uploader := NewUploader(p.backend, p.gate)
	handle, err := uploader.Upload(ctx, asset, mediaType)
	if err != nil {
		return nil, asPipelineError(err)
	}
	// The file has been fully read; nothing downstream needs it.
	asset.Release()

	if p.deleteRemote {
		defer p.deleteHandle(ctx, handle)
	}

	poller := NewPoller(p.backend, p.pollInterval, p.maxWait)
	poller.sleep = p.sleep
	ready, err := poller.Wait(ctx, handle)
	if err != nil {
		return nil, asPipelineError(err)
	}

	executor := NewExecutor(p.backend, p.gate, p.pause)
	executor.sleep = p.sleep
	transcript, err = executor.Execute(ctx, ready, p.candidates, p.instruction)
	if err != nil {
		return nil, asPipelineError(err)
	}
	return transcript, nil
}

// deleteHandle removes the uploaded media. Best-effort: failures are logged.
func (p *Pipeline) deleteHandle(ctx context.Context, handle *RemoteHandle) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.backend.Delete(ctx, handle.ID); err != nil {
		log.Warn().Err(err).Str("name", handle.ID).Msg("Failed to delete remote file")
		return
	}
	log.Debug().Str("name", handle.ID).Msg("Remote file deleted")
}

func (p *Pipeline) observe(transcript *Transcript, err error, elapsed time.Duration) {
	outcome := "success"
	model := ""
	if transcript != nil {
		model = transcript.Model
	}
	if err != nil {
		outcome = KindOf(err).String()
		log.Error().Err(err).Str("kind", outcome).Dur("duration", elapsed).Msg("Transcription failed")
	} else {
		log.Info().Str("model", model).Dur("duration", elapsed).Msg("Transcription complete")
	}

	metrics.ObserveRun(outcome, elapsed)
	metrics.New(metrics.Namespace).
		Dimension("Outcome", outcome).
		Metric("TranscriptionMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("TranscriptionRuns").
		Property("model", model).
		Flush()
}

// asPipelineError guarantees the *Error contract of Run.
func asPipelineError(err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return newError(Classify(err), "", err)
}
