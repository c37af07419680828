package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeDynamo struct {
	items  map[string]map[string]types.AttributeValue
	putErr error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyString(key map[string]types.AttributeValue) string {
	pk := key["PK"].(*types.AttributeValueMemberS).Value
	sk := key["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[keyString(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[keyString(in.Key)]}, nil
}

func TestDynamoStore_RoundTrip(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoStore(client, "runs")
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	run := &Run{ID: "abc", Status: StatusSuccess, Model: "gemini-2.5-flash", Transcription: "hello", DurationMs: 1200}
	if err := s.PutRun(context.Background(), run); err != nil {
		t.Fatalf("PutRun: %v", err)
	}

	item := client.items["RUN#abc|META"]
	if item == nil {
		t.Fatal("expected item under RUN#abc/META")
	}
	ttl := item["expiresAt"].(*types.AttributeValueMemberN).Value
	if want := strconv.FormatInt(now.Add(RunTTL).Unix(), 10); ttl != want {
		t.Errorf("expected expiresAt %s, got %s", want, ttl)
	}
	if _, ok := item["ID"]; ok {
		t.Error("ID must come from the key, not a separate attribute")
	}

	got, err := s.GetRun(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.ID != "abc" || got.Model != "gemini-2.5-flash" || got.Transcription != "hello" || got.CreatedAt != now.Unix() {
		t.Errorf("unexpected run %+v", got)
	}
}

func TestDynamoStore_Missing(t *testing.T) {
	s := NewDynamoStore(newFakeDynamo(), "runs")
	got, err := s.GetRun(context.Background(), "nope")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil for unknown run, got %v, %v", got, err)
	}
}

func TestDynamoStore_LargeTranscriptKeptByLocation(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoStore(client, "runs")
	run := &Run{ID: "big", Status: StatusSuccess, Transcription: strings.Repeat("a", maxInlineTranscript+1), Location: "s3://b/k"}
	if err := s.PutRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetRun(context.Background(), "big")
	if got.Transcription != "" || got.Location != "s3://b/k" {
		t.Errorf("expected location only, got %d bytes and %q", len(got.Transcription), got.Location)
	}
	if run.Transcription == "" {
		t.Error("caller's run must not be modified")
	}
}

func TestDynamoStore_Errors(t *testing.T) {
	client := newFakeDynamo()
	client.putErr = errors.New("ResourceNotFoundException")
	s := NewDynamoStore(client, "runs")

	if err := s.PutRun(context.Background(), &Run{ID: "x"}); err == nil {
		t.Error("expected PutItem error")
	}
	if err := s.PutRun(context.Background(), &Run{}); err == nil {
		t.Error("expected error for empty ID")
	}
}

func TestMemoryStore_Evicts(t *testing.T) {
	m := NewMemoryStore(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := m.PutRun(ctx, &Run{ID: id, Status: StatusSuccess}); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := m.GetRun(ctx, "a"); got != nil {
		t.Error("oldest run should be evicted")
	}
	if got, _ := m.GetRun(ctx, "c"); got == nil || got.CreatedAt == 0 {
		t.Errorf("expected newest run with timestamp, got %+v", got)
	}
}
