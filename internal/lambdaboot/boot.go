// Package lambdaboot holds the cold-start bootstrap shared by the Lambda
// entrypoint: AWS config, the optional S3 and DynamoDB clients, and the
// Gemini API key from SSM Parameter Store.
package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/gemini-transcriber/internal/logging"
	"github.com/fpang/gemini-transcriber/internal/store"
)

const (
	// EnvSSMKeyParam overrides the SSM parameter holding the API key.
	EnvSSMKeyParam = "SSM_API_KEY_PARAM"
	// DefaultSSMKeyParam is the SSM parameter read when EnvSSMKeyParam is unset.
	DefaultSSMKeyParam = "/gemini-transcriber/prod/gemini-api-key"
)

// AWSClients holds the AWS config and the SSM client.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// ParameterGetter is the subset of *ssm.Client used to load the key.
type ParameterGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// InitAWS loads the default AWS config. Fatals on error: nothing works
// without it.
func InitAWS(ctx context.Context) AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{Config: cfg, SSM: ssm.NewFromConfig(cfg)}
}

// InitS3Optional returns an S3 client when bucket is set, nil otherwise.
func InitS3Optional(cfg aws.Config, bucket string) *s3.Client {
	if bucket == "" {
		log.Warn().Msg("Transcript bucket not set, S3 copies disabled")
		return nil
	}
	return s3.NewFromConfig(cfg)
}

// InitDynamoOptional returns a run store on table when it is set, nil
// otherwise.
func InitDynamoOptional(cfg aws.Config, table string) *store.DynamoStore {
	if table == "" {
		log.Warn().Msg("Run table not set, run history disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), table)
}

// LoadGeminiKey returns GEMINI_API_KEY if set, otherwise reads the SSM
// parameter named by SSM_API_KEY_PARAM (DefaultSSMKeyParam when unset) and
// exports it so later lookups through the environment succeed.
func LoadGeminiKey(ctx context.Context, client ParameterGetter) (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	param := logging.EnvOrDefault(EnvSSMKeyParam, DefaultSSMKeyParam)

	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &param,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read API key from SSM %s: %w", param, err)
	}
	if result.Parameter == nil || aws.ToString(result.Parameter.Value) == "" {
		return "", errors.New("SSM parameter " + param + " is empty")
	}
	key := aws.ToString(result.Parameter.Value)
	os.Setenv("GEMINI_API_KEY", key)
	log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msg("Gemini API key loaded from SSM")
	return key, nil
}

// StartupLog returns a startup logger with the init duration filled in.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
