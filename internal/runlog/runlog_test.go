package runlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymate/chatbatch/pkg/logging"
)

type fakeDynamo struct {
	putInput *dynamodb.PutItemInput
	putErr   error
	getItem  map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInput = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func TestStore_Record(t *testing.T) {
	client := &fakeDynamo{}
	store := NewStore(client, "sweep-runs", logging.Default())

	run := &RunRecord{
		RunID:      "run-1",
		Status:     RunStatusOK,
		Digests:    3,
		StartedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		FinishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := store.Record(context.Background(), run); err != nil {
		t.Fatalf("record: %v", err)
	}

	if client.putInput == nil {
		t.Fatal("expected a PutItem call")
	}
	if *client.putInput.TableName != "sweep-runs" {
		t.Fatalf("table = %s", *client.putInput.TableName)
	}
	if *client.putInput.ConditionExpression != "attribute_not_exists(runId)" {
		t.Fatalf("condition = %s", *client.putInput.ConditionExpression)
	}

	var stored RunRecord
	if err := attributevalue.UnmarshalMap(client.putInput.Item, &stored); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if stored.RunID != "run-1" || stored.Digests != 3 || stored.Status != RunStatusOK {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.ExpiresAt == 0 {
		t.Fatal("expected a TTL to be set")
	}
}

func TestStore_RecordValidation(t *testing.T) {
	store := NewStore(&fakeDynamo{}, "sweep-runs", logging.Default())

	if err := store.Record(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil run")
	}
	if err := store.Record(context.Background(), &RunRecord{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestStore_GetRun_NotFound(t *testing.T) {
	store := NewStore(&fakeDynamo{}, "sweep-runs", logging.Default())

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
