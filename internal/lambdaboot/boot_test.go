package lambdaboot

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	value string
	err   error
	asked string
}

func (f *fakeSSM) GetParameter(ctx context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.asked = aws.ToString(in.Name)
	if f.err != nil {
		return nil, f.err
	}
	return &ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String(f.value)}}, nil
}

func TestLoadGeminiKey_EnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	client := &fakeSSM{value: "from-ssm"}

	key, err := LoadGeminiKey(context.Background(), client)
	if err != nil || key != "from-env" {
		t.Errorf("expected env key, got %q, %v", key, err)
	}
	if client.asked != "" {
		t.Error("SSM must not be called when the env var is set")
	}
}

func TestLoadGeminiKey_FromSSM(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv(EnvSSMKeyParam, "")
	client := &fakeSSM{value: "from-ssm"}

	key, err := LoadGeminiKey(context.Background(), client)
	if err != nil || key != "from-ssm" {
		t.Fatalf("expected SSM key, got %q, %v", key, err)
	}
	if client.asked != DefaultSSMKeyParam {
		t.Errorf("expected default param, got %s", client.asked)
	}
	if os.Getenv("GEMINI_API_KEY") != "from-ssm" {
		t.Error("key should be exported to the environment")
	}
}

func TestLoadGeminiKey_Errors(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv(EnvSSMKeyParam, "/custom/key")

	client := &fakeSSM{err: errors.New("ParameterNotFound")}
	if _, err := LoadGeminiKey(context.Background(), client); err == nil {
		t.Error("expected SSM error")
	}
	if client.asked != "/custom/key" {
		t.Errorf("expected custom param, got %s", client.asked)
	}

	if _, err := LoadGeminiKey(context.Background(), &fakeSSM{}); err == nil {
		t.Error("expected error for empty parameter")
	}
}

func TestOptionalClients(t *testing.T) {
	if InitS3Optional(aws.Config{}, "") != nil {
		t.Error("expected nil S3 client without bucket")
	}
	if InitDynamoOptional(aws.Config{}, "") != nil {
		t.Error("expected nil store without table")
	}
	if InitDynamoOptional(aws.Config{Region: "us-east-1"}, "runs") == nil {
		t.Error("expected store when table is set")
	}
	if StartupLog("x", time.Now()) == nil {
		t.Error("expected startup logger")
	}
}
