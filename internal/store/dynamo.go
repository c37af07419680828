package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

const (
	pkPrefix = "RUN#"
	skMeta   = "META"

	// maxInlineTranscript keeps items well below DynamoDB's 400 KB limit.
	// Longer transcripts are stored by Location only.
	maxInlineTranscript = 300 * 1024
)

// ItemAPI is the subset of *dynamodb.Client used by DynamoStore.
type ItemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements RunStore on a DynamoDB table.
type DynamoStore struct {
	client    ItemAPI
	tableName string
	now       func() time.Time
}

var _ RunStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for tableName.
func NewDynamoStore(client ItemAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

func runKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + id},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// PutRun writes run, replacing any previous record with the same ID.
func (s *DynamoStore) PutRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return errors.New("run ID is required")
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.now().Unix()
	}

	stored := *run
	if len(stored.Transcription) > maxInlineTranscript {
		log.Warn().
			Str("id", run.ID).
			Int("length", len(stored.Transcription)).
			Msg("Transcript too large to store inline; keeping location only")
		stored.Transcription = ""
	}

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", run.ID, err)
	}
	for k, v := range runKey(run.ID) {
		item[k] = v
	}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RunTTL).Unix(), 10)}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("PutItem run %s: %w", run.ID, err)
	}
	log.Debug().Str("id", run.ID).Str("status", run.Status).Msg("Run stored")
	return nil
}

// GetRun reads a run by ID.
func (s *DynamoStore) GetRun(ctx context.Context, id string) (*Run, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{TableName: &s.tableName, Key: runKey(id)})
	if err != nil {
		return nil, fmt.Errorf("GetItem run %s: %w", id, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var run Run
	if err := attributevalue.UnmarshalMap(result.Item, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", id, err)
	}
	run.ID = id
	return &run, nil
}
