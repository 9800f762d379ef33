// Package runlog journals sweep runs to DynamoDB so operators can audit
// how many digests each pass produced and when the last successful sweep
// finished. The journal is best effort: a write failure never blocks or
// fails the sweep itself.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymate/chatbatch/pkg/logging"
)

const runTTL = 7 * 24 * time.Hour

// RunStatus marks how a sweep pass ended.
type RunStatus string

const (
	RunStatusOK    RunStatus = "ok"
	RunStatusError RunStatus = "error"
)

// ErrRunNotFound indicates the requested run ID does not exist.
var ErrRunNotFound = errors.New("runlog: run not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// RunRecord captures the outcome of a single sweep pass.
type RunRecord struct {
	RunID      string    `dynamodbav:"runId" json:"runId"`
	Status     RunStatus `dynamodbav:"status" json:"status"`
	Digests    int       `dynamodbav:"digests" json:"digests"`
	Error      string    `dynamodbav:"error,omitempty" json:"error,omitempty"`
	StartedAt  string    `dynamodbav:"startedAt" json:"startedAt"`
	FinishedAt string    `dynamodbav:"finishedAt" json:"finishedAt"`
	ExpiresAt  int64     `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// Journal persists sweep run records.
type Journal interface {
	Record(ctx context.Context, run *RunRecord) error
}

// Store persists run records to DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ Journal = (*Store)(nil)

// NewStore builds a journal backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("runlog: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("runlog: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Record inserts a finished run. Run IDs are expected to be unique per pass,
// so an existing item with the same ID is treated as a write error.
func (s *Store) Record(ctx context.Context, run *RunRecord) error {
	if run == nil {
		return errors.New("runlog: run cannot be nil")
	}
	if run.RunID == "" {
		return errors.New("runlog: runID required")
	}
	if run.ExpiresAt == 0 {
		run.ExpiresAt = time.Now().UTC().Add(runTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(run)
	if err != nil {
		return fmt.Errorf("runlog: failed to marshal run: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(runId)"),
	})
	if err != nil {
		return fmt.Errorf("runlog: failed to persist run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, errors.New("runlog: runID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"runId": &types.AttributeValueMemberS{Value: runID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("runlog: failed to fetch run: %w", err)
	}
	if out.Item == nil {
		return nil, ErrRunNotFound
	}

	var run RunRecord
	if err := attributevalue.UnmarshalMap(out.Item, &run); err != nil {
		return nil, fmt.Errorf("runlog: failed to decode run: %w", err)
	}
	return &run, nil
}
