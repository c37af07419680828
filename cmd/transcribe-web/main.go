// Package main serves the transcription web page and JSON API locally.
//
// Endpoints:
//
//	GET  /                          upload page
//	POST /transcribe                multipart upload (field "audio"), returns the transcript
//	POST /api/transcribe            same as /transcribe
//	GET  /api/transcriptions/{id}   a recorded run
//	GET  /api/health                configuration summary
//	GET  /metrics                   Prometheus metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-transcriber/internal/auth"
	"github.com/fpang/gemini-transcriber/internal/config"
	"github.com/fpang/gemini-transcriber/internal/httpapi"
	"github.com/fpang/gemini-transcriber/internal/lambdaboot"
	"github.com/fpang/gemini-transcriber/internal/logging"
	"github.com/fpang/gemini-transcriber/internal/metrics"
	"github.com/fpang/gemini-transcriber/internal/sink"
	"github.com/fpang/gemini-transcriber/internal/store"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// commitHash is set at build time via -ldflags.
var commitHash = "dev"

// transcriptPrefix is the S3 key prefix for uploaded transcripts.
const transcriptPrefix = "transcripts"

var (
	portFlag    int
	configFlag  string
	presetFlag  string
	originsFlag []string
	emfFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "transcribe-web",
	Short: "Web UI and API for Gemini audio transcription",
	Long: `Starts a local web server with an upload page and a JSON API.

Each upload is sent to Gemini and transcribed with the configured preset and
candidate models. The API key comes from GEMINI_API_KEY or the encrypted
credentials file. Without a key the page still loads and transcription
requests fail with 500.

Examples:
  transcribe-web
  transcribe-web --port 8080 --preset discourse
  transcribe-web --config transcriber.yaml --allow-origin https://app.example.com`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (default from PORT or 3000)")
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&presetFlag, "preset", "p", "", "Instruction preset")
	rootCmd.Flags().StringSliceVar(&originsFlag, "allow-origin", nil, "Extra CORS origins besides localhost")
	rootCmd.Flags().BoolVar(&emfFlag, "emf", false, "Print CloudWatch EMF metric records to stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()
	if !emfFlag {
		metrics.SetOutput(io.Discard)
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}
	if cmd.Flags().Changed("preset") {
		cfg.Preset = presetFlag
	}
	preset, err := cfg.Resolve()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	pipeline := newPipeline(ctx, cfg)

	var runs store.RunStore = store.NewMemoryStore(store.DefaultMemoryCapacity)
	var out sink.Sink
	if cfg.Table != "" || cfg.Bucket != "" {
		awsClients := lambdaboot.InitAWS(ctx)
		if ds := lambdaboot.InitDynamoOptional(awsClients.Config, cfg.Table); ds != nil {
			runs = ds
		}
		if client := lambdaboot.InitS3Optional(awsClients.Config, cfg.Bucket); client != nil {
			out = sink.S3Sink{Client: client, Bucket: cfg.Bucket, Prefix: transcriptPrefix}
		}
	}

	server := httpapi.New(httpapi.Config{
		Pipeline:       pipeline,
		Store:          runs,
		Sink:           out,
		AllowedOrigins: originsFlag,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     server.Handler(),
		ReadTimeout: 5 * time.Minute,
		// Covers the processing wait plus every candidate attempt.
		WriteTimeout: cfg.MaxWait + 10*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	lambdaboot.StartupLog("transcribe-web", initStart).
		CommitHash(commitHash).
		Models(preset.Candidates).
		S3Bucket("transcripts", cfg.Bucket).
		DynamoTable("runs", cfg.Table).
		Feature("transcription", pipeline != nil).
		Feature("deleteRemote", cfg.DeleteRemote).
		Config("preset", preset.Name).
		Config("port", fmt.Sprint(cfg.Port)).
		Log()

	fmt.Printf("\n  Transcriber: http://localhost:%d\n\n", cfg.Port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// newPipeline returns nil when no API key is available so the server can
// still start.
func newPipeline(ctx context.Context, cfg *config.Config) *transcribe.Pipeline {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Warn().Err(err).Msg("No Gemini API key, transcription disabled")
		return nil
	}
	client, err := transcribe.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	gate, err := transcribe.NewGateRegistry(cfg.RateLimit, 0, cfg.QuotaCooldown).For(apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate gate")
	}
	opts, err := cfg.PipelineOptions(gate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return transcribe.New(transcribe.NewGeminiBackend(client), opts...)
}
