// Package store keeps a history of finished transcription runs so a caller
// can fetch a result by ID after the request that produced it.
//
// It is a record of outcomes, never a work queue: a run is written once,
// when it ends. The DynamoDB implementation uses a single-table layout with
// PK RUN#{id}, SK META and a TTL attribute (expiresAt) that expires records
// after RunTTL.
package store

import (
	"context"
	"time"
)

// RunTTL is how long a run record is kept.
const RunTTL = 7 * 24 * time.Hour

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is the stored outcome of one transcription.
type Run struct {
	ID            string `dynamodbav:"-" json:"id"`
	Status        string `dynamodbav:"status" json:"status"`
	Model         string `dynamodbav:"model,omitempty" json:"model,omitempty"`
	Transcription string `dynamodbav:"transcription,omitempty" json:"transcription,omitempty"`
	// Location is where the full transcript was delivered, when it was.
	Location   string `dynamodbav:"location,omitempty" json:"location,omitempty"`
	ErrorKind  string `dynamodbav:"errorKind,omitempty" json:"errorKind,omitempty"`
	Error      string `dynamodbav:"error,omitempty" json:"error,omitempty"`
	Filename   string `dynamodbav:"filename,omitempty" json:"filename,omitempty"`
	DurationMs int64  `dynamodbav:"durationMs" json:"durationMs"`
	CreatedAt  int64  `dynamodbav:"createdAt" json:"createdAt"`
}

// RunStore persists run outcomes. Get returns (nil, nil) when the run is
// unknown. Implementations are safe for concurrent use.
type RunStore interface {
	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
}
