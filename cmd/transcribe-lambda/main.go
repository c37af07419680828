// Package main runs the transcription API behind API Gateway (HTTP API,
// payload v2). The Gemini API key is read from SSM Parameter Store at cold
// start; runs are recorded in DynamoDB and transcripts copied to S3 when
// TRANSCRIBE_TABLE and TRANSCRIBE_BUCKET are set.
package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/config"
	"github.com/fpang/gemini-transcriber/internal/httpapi"
	"github.com/fpang/gemini-transcriber/internal/lambdaboot"
	"github.com/fpang/gemini-transcriber/internal/logging"
	"github.com/fpang/gemini-transcriber/internal/sink"
	"github.com/fpang/gemini-transcriber/internal/store"
	"github.com/fpang/gemini-transcriber/internal/transcribe"
)

// commitHash is set at build time via -ldflags.
var commitHash = "dev"

// transcriptPrefix is the S3 key prefix for uploaded transcripts.
const transcriptPrefix = "transcripts"

// gates outlives a single invocation so warm containers keep their quota
// cooldown.
var gates *transcribe.GateRegistry

var server *httpapi.Server

func init() {
	initStart := time.Now()
	logging.Init()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	preset, err := cfg.Resolve()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()
	awsClients := lambdaboot.InitAWS(ctx)
	gates = transcribe.NewGateRegistry(cfg.RateLimit, 0, cfg.QuotaCooldown)

	var pipeline *transcribe.Pipeline
	apiKey, err := lambdaboot.LoadGeminiKey(ctx, awsClients.SSM)
	if err != nil {
		log.Error().Err(err).Msg("Gemini API key unavailable, transcription disabled")
	} else {
		pipeline = newPipeline(ctx, cfg, apiKey)
	}

	var runs store.RunStore
	if ds := lambdaboot.InitDynamoOptional(awsClients.Config, cfg.Table); ds != nil {
		runs = ds
	}
	var out sink.Sink
	if client := lambdaboot.InitS3Optional(awsClients.Config, cfg.Bucket); client != nil {
		out = sink.S3Sink{Client: client, Bucket: cfg.Bucket, Prefix: transcriptPrefix}
	}

	server = httpapi.New(httpapi.Config{
		Pipeline: pipeline,
		Store:    runs,
		Sink:     out,
	})

	lambdaboot.StartupLog("transcribe-lambda", initStart).
		CommitHash(commitHash).
		Models(preset.Candidates).
		S3Bucket("transcripts", cfg.Bucket).
		DynamoTable("runs", cfg.Table).
		SSMParam("apiKey", logging.EnvOrDefault(lambdaboot.EnvSSMKeyParam, lambdaboot.DefaultSSMKeyParam)).
		Feature("transcription", pipeline != nil).
		Config("preset", preset.Name).
		Log()
}

func newPipeline(ctx context.Context, cfg *config.Config, apiKey string) *transcribe.Pipeline {
	client, err := transcribe.NewGeminiClient(ctx, apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	gate, err := gates.For(apiKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rate gate")
	}
	opts, err := cfg.PipelineOptions(gate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return transcribe.New(transcribe.NewGeminiBackend(client), opts...)
}

func main() {
	adapter := httpadapter.NewV2(server.Handler())
	lambda.Start(adapter.ProxyWithContext)
}
