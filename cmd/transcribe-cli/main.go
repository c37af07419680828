package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/gemini-transcriber/internal/assets"
	"github.com/fpang/gemini-transcriber/internal/cli"
	"github.com/fpang/gemini-transcriber/internal/config"
	"github.com/fpang/gemini-transcriber/internal/jobs"
	"github.com/fpang/gemini-transcriber/internal/lambdaboot"
	"github.com/fpang/gemini-transcriber/internal/logging"
	"github.com/fpang/gemini-transcriber/internal/metrics"
	"github.com/fpang/gemini-transcriber/internal/s3util"
	"github.com/fpang/gemini-transcriber/internal/sink"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

const (
	defaultInput  = "audio.mp3"
	defaultOutput = "transcript.txt"
)

// CLI flags
var (
	configFlag       string
	presetFlag       string
	modelsFlag       string
	pickFlag         bool
	s3OutputFlag     string
	deleteRemoteFlag bool
	validateFlag     bool
	emfFlag          bool
)

var rootCmd = &cobra.Command{
	Use:   "transcribe-cli [input] [output]",
	Short: "Transcribe an audio file with Gemini",
	Long: `Transcribe uploads an audio file to Gemini, waits for it to be processed,
and asks each candidate model in turn for a transcription until one succeeds.

The input defaults to audio.mp3 and the output to transcript.txt. The input
may also be an s3://bucket/key location. Presets pick the prompt and the
default model list: standard, discourse, roman, web.

Examples:
  transcribe-cli
  transcribe-cli lecture.mp3 lecture.txt
  transcribe-cli --preset discourse class.m4a class.txt
  transcribe-cli --models gemini-2.5-pro,gemini-2.5-flash talk.wav
  transcribe-cli s3://recordings/2025/talk.mp3 talk.txt --s3-output s3://transcripts/cli
  transcribe-cli --pick`,
	Args: cobra.MaximumNArgs(2),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVarP(&presetFlag, "preset", "p", "", fmt.Sprintf("Instruction preset %v", assets.PresetNames()))
	rootCmd.Flags().StringVarP(&modelsFlag, "models", "m", "", "Comma-separated candidate models, tried in order")
	rootCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the input file with a file dialog")
	rootCmd.Flags().StringVar(&s3OutputFlag, "s3-output", "", "Also upload the transcript under s3://bucket/prefix")
	rootCmd.Flags().BoolVar(&deleteRemoteFlag, "delete-remote", false, "Delete the uploaded audio from Gemini afterwards")
	rootCmd.Flags().BoolVar(&validateFlag, "validate", false, "Check the API key before uploading")
	rootCmd.Flags().BoolVar(&emfFlag, "emf", false, "Print CloudWatch EMF metric records to stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	if !emfFlag {
		metrics.SetOutput(io.Discard)
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	applyFlags(cmd, cfg)
	preset, err := cfg.Resolve()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validateModel := ""
	if validateFlag {
		validateModel = preset.Candidates[0]
	}
	apiKey, client := cli.InitGeminiClient(ctx, validateModel)

	input, output := inputOutput(args)
	resolved := checkInput(input)

	var s3Client *s3.Client
	s3For := func() *s3.Client {
		if s3Client == nil {
			s3Client = s3.NewFromConfig(lambdaboot.InitAWS(ctx).Config)
		}
		return s3Client
	}
	sinks := outputSinks(output, s3For)

	gate, err := transcribe.NewGateRegistry(cfg.RateLimit, 0, cfg.QuotaCooldown).For(apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate gate")
	}
	opts, err := cfg.PipelineOptions(gate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	pipeline := transcribe.New(transcribe.NewGeminiBackend(client), opts...)

	fmt.Printf("Transcribing %s with %s preset (%d candidate models)...\n", filepath.Base(input), preset.Name, len(preset.Candidates))

	// Staged last: nothing may exit between here and Run, which removes it.
	start := time.Now()
	staged, mimeType := stageInput(ctx, input, resolved, s3For)
	asset := transcribe.NewMediaAsset(staged, mimeType, filepath.Base(input))
	transcript, err := pipeline.Run(ctx, asset)
	if err != nil {
		var pe *transcribe.Error
		if errors.As(err, &pe) {
			fmt.Fprintf(os.Stderr, "\nTranscription failed: %s\n", pe.Message)
		}
		log.Fatal().Err(err).Msg("Transcription failed")
	}

	locations, err := sinks.Write(ctx, jobs.GenerateID(), input, transcript)
	if err != nil {
		log.Fatal().Err(err).Str("written", locations).Msg("Failed to save transcript")
	}

	fmt.Printf("\nSuccess using [%s] in %s!\n", transcript.Model, cli.FormatDurationShort(time.Since(start)))
	fmt.Printf("Transcript saved to: %s\n", locations)
}

// applyFlags lets explicitly set flags override file and environment values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("preset") {
		cfg.Preset = presetFlag
	}
	if cmd.Flags().Changed("models") {
		cfg.Models = config.SplitList(modelsFlag)
	}
	if cmd.Flags().Changed("delete-remote") {
		cfg.DeleteRemote = deleteRemoteFlag
	}
}

func inputOutput(args []string) (input, output string) {
	input, output = defaultInput, defaultOutput
	if len(args) > 0 {
		input = args[0]
	}
	if len(args) > 1 {
		output = args[1]
	}
	if pickFlag {
		picked, err := cli.PickAudioFile()
		if errors.Is(err, cli.ErrPickCanceled) {
			fmt.Println("No file selected.")
			os.Exit(1)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("File picker failed")
		}
		input = picked
	}
	return input, output
}

// outputSinks validates --s3-output before any work is done.
func outputSinks(output string, s3For func() *s3.Client) sink.Multi {
	sinks := sink.Multi{sink.FileSink{Path: output}}
	if s3OutputFlag == "" {
		return sinks
	}
	bucket, prefix, err := s3util.ParseURI(s3OutputFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --s3-output")
	}
	return append(sinks, sink.S3Sink{Client: s3For(), Bucket: bucket, Prefix: prefix})
}

// checkInput validates the input without creating anything. It returns the
// resolved local path, or "" for an S3 input.
func checkInput(input string) string {
	if s3util.IsURI(input) {
		if _, _, err := s3util.ParseURI(input); err != nil {
			log.Fatal().Err(err).Msg("Invalid S3 input")
		}
		return ""
	}

	path, err := cli.ResolveInputFile(input)
	if errors.Is(err, cli.ErrInputNotFound) {
		fmt.Fprintf(os.Stderr, "\nError: the file '%s' was not found.\n", input)
		os.Exit(1)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read input")
	}
	if info, err := os.Stat(path); err == nil {
		log.Debug().Str("path", path).Str("size", cli.FormatSize(info.Size())).Msg("Input resolved")
	}
	return path
}

// stageInput returns a temp copy of the input for the pipeline to consume
// and the declared media type when known.
func stageInput(ctx context.Context, input, resolved string, s3For func() *s3.Client) (string, string) {
	if resolved == "" {
		bucket, key, _ := s3util.ParseURI(input)
		path, contentType, err := s3util.DownloadToTempFile(ctx, s3For(), bucket, key)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to download input from S3")
		}
		return path, contentType
	}

	staged, err := cli.StageCopy(resolved)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to stage input")
	}
	return staged, ""
}
