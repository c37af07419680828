// Package httpapi is the thin HTTP front end over the transcription
// pipeline. The same handler serves the local web server and, through the
// API Gateway proxy adapter, the Lambda function.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/assets"
	"github.com/fpang/gemini-transcriber/internal/config"
	"github.com/fpang/gemini-transcriber/internal/jobs"
	"github.com/fpang/gemini-transcriber/internal/metrics"
	"github.com/fpang/gemini-transcriber/internal/sink"
	"github.com/fpang/gemini-transcriber/internal/store"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

const (
	transcriptionsPrefix = "/api/transcriptions/"

	// DefaultMaxUploadBytes bounds the multipart body.
	DefaultMaxUploadBytes = 200 << 20
	maxMemoryBytes        = 32 << 20
	audioField            = "audio"
)

// Config wires the handler. Pipeline is nil when no API key is configured;
// transcription requests then fail with 500 while the page and health
// check keep working.
type Config struct {
	Pipeline       *transcribe.Pipeline
	Store          store.RunStore
	Sink           sink.Sink
	MaxUploadBytes int64
	AllowedOrigins []string
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Server serves the transcription API.
type Server struct {
	cfg Config
}

// New creates a Server. Preset candidates are registered as metric labels
// since a request may select any preset.
func New(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	for _, name := range assets.PresetNames() {
		if preset, err := assets.LookupPreset(name); err == nil {
			metrics.RegisterModels(preset.Candidates...)
		}
	}
	return &Server{cfg: cfg}
}

// Handler returns the routed handler wrapped in logging and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/transcribe", s.handleTranscribe)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc(transcriptionsPrefix, s.handleGetTranscription)
	if s.cfg.MetricsHandler != nil {
		mux.Handle("/metrics", s.cfg.MetricsHandler)
	}
	return withLogging(withCORS(s.cfg.AllowedOrigins, mux))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httpError(w, http.StatusNotFound, "Not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httpError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Write(assets.IndexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var models []string
	if s.cfg.Pipeline != nil {
		models = s.cfg.Pipeline.Candidates()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": s.cfg.Pipeline != nil,
		"models":     models,
		"history":    s.cfg.Store != nil,
	})
}

type transcribeResponse struct {
	Status        string `json:"status"`
	ID            string `json:"id"`
	Model         string `json:"model"`
	Transcription string `json:"transcription"`
	Location      string `json:"location,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	ID    string `json:"id,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := zerolog.Ctx(r.Context())
	if s.cfg.Pipeline == nil {
		logger.Error().Msg("Transcription requested but no API key is configured")
		httpError(w, http.StatusInternalServerError, "Server is missing the Gemini API key")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Audio file exceeds %d MB", s.cfg.MaxUploadBytes>>20))
			return
		}
		httpError(w, http.StatusBadRequest, "Expected a multipart form with an 'audio' file")
		return
	}
	defer r.MultipartForm.RemoveAll()

	pipeline, err := s.pipelineFor(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := saveUpload(r)
	if errors.Is(err, http.ErrMissingFile) {
		httpError(w, http.StatusBadRequest, "No audio file uploaded")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to store uploaded audio")
		httpError(w, http.StatusInternalServerError, "Failed to store uploaded audio")
		return
	}

	id := jobs.GenerateID()
	logger.Info().
		Str("id", id).
		Str("file", asset.Filename).
		Str("type", asset.MIMEType).
		Strs("models", pipeline.Candidates()).
		Msg("Transcription request received")

	start := time.Now()
	transcript, runErr := pipeline.Run(r.Context(), asset)
	elapsed := time.Since(start)

	run := &store.Run{ID: id, Filename: asset.Filename, DurationMs: elapsed.Milliseconds()}
	if runErr != nil {
		var pe *transcribe.Error
		if !errors.As(runErr, &pe) {
			pe = &transcribe.Error{Kind: transcribe.KindOf(runErr), Message: transcribe.UserMessage(transcribe.KindOf(runErr), ""), Err: runErr}
		}
		run.Status, run.ErrorKind, run.Error = store.StatusFailed, pe.Kind.String(), pe.Message
		s.record(r.Context(), run)
		respondJSON(w, pe.Kind.HTTPStatus(), errorResponse{Error: pe.Message, Kind: pe.Kind.String(), ID: id})
		return
	}

	run.Status, run.Model, run.Transcription = store.StatusSuccess, transcript.Model, transcript.Text
	resp := transcribeResponse{Status: "success", ID: id, Model: transcript.Model, Transcription: transcript.Text}
	if s.cfg.Sink != nil {
		loc, err := s.cfg.Sink.Write(context.WithoutCancel(r.Context()), id, asset.Filename, transcript)
		if err != nil {
			logger.Warn().Err(err).Str("id", id).Msg("Failed to deliver transcript copy")
		}
		resp.Location, run.Location = loc, loc
	}
	s.record(r.Context(), run)
	respondJSON(w, http.StatusOK, resp)
}

// pipelineFor applies the request's preset and model overrides. A single
// "model" wins over a "models" list; both replace the preset's candidates.
func (s *Server) pipelineFor(r *http.Request) (*transcribe.Pipeline, error) {
	var opts []transcribe.Option
	if name := strings.TrimSpace(r.FormValue("preset")); name != "" {
		preset, err := assets.LookupPreset(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transcribe.WithInstruction(preset.Instruction), transcribe.WithCandidates(preset.Candidates...))
	}
	if model := strings.TrimSpace(r.FormValue("model")); model != "" {
		opts = append(opts, transcribe.WithCandidates(model))
	} else if models := config.SplitList(r.FormValue("models")); len(models) > 0 {
		opts = append(opts, transcribe.WithCandidates(models...))
	}
	if len(opts) == 0 {
		return s.cfg.Pipeline, nil
	}
	return s.cfg.Pipeline.With(opts...), nil
}

// saveUpload copies the audio part to a temp file owned by the returned asset.
func saveUpload(r *http.Request) (*transcribe.MediaAsset, error) {
	file, header, err := r.FormFile(audioField)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	_, copyErr := io.Copy(tmp, file)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	return transcribe.NewMediaAsset(tmp.Name(), header.Header.Get("Content-Type"), filepath.Base(header.Filename)), nil
}

// record stores the run outcome. It outlives a client disconnect.
func (s *Server) record(ctx context.Context, run *store.Run) {
	if s.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.cfg.Store.PutRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("id", run.ID).Msg("Failed to record run")
	}
}

func (s *Server) handleGetTranscription(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.cfg.Store == nil {
		httpError(w, http.StatusNotFound, "Run history is not enabled")
		return
	}
	id, ok := jobs.ParseRoute(r.URL.Path, transcriptionsPrefix)
	if !ok {
		httpError(w, http.StatusBadRequest, "Invalid transcription ID")
		return
	}
	run, err := s.cfg.Store.GetRun(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("id", id).Msg("Failed to read run")
		httpError(w, http.StatusInternalServerError, "Failed to read transcription")
		return
	}
	if run == nil {
		httpError(w, http.StatusNotFound, "Transcription not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}
