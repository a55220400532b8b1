package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore writes records to a DynamoDB table keyed by device_id (hash)
// and timestamp (range).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

func NewDynamoStore(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Name() string { return "dynamodb" }

func (s *DynamoStore) Put(ctx context.Context, rec model.CanonicalRecord) error {
	item, err := marshalItem(rec.Item())
	if err != nil {
		return &ValidationError{Reason: "unsupported attribute value", Err: err}
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
			return &ValidationError{Reason: apiErr.ErrorMessage(), Err: err}
		}
		return fmt.Errorf("put item into %s: %w", s.table, err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, deviceID, timestamp string) (model.CanonicalRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		model.FieldDeviceID:  deviceID,
		model.FieldTimestamp: timestamp,
	})
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("marshal key: %w", err)
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("get item from %s: %w", s.table, err)
	}
	if len(out.Item) == 0 {
		return model.CanonicalRecord{}, ErrNotFound
	}

	item := make(map[string]any, len(out.Item))
	for k, av := range out.Item {
		v, err := unmarshalValue(av)
		if err != nil {
			return model.CanonicalRecord{}, fmt.Errorf("decode attribute %s: %w", k, err)
		}
		item[k] = v
	}
	return model.RecordFromItem(item), nil
}

func marshalItem(item map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

// marshalValue converts a parsed JSON value. Numbers are written from their
// original literal so no precision is lost on the way to the N type.
func marshalValue(v any) (types.AttributeValue, error) {
	switch val := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: val}, nil
	case json.Number:
		return &types.AttributeValueMemberN{Value: val.String()}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: val}, nil
	case map[string]any:
		m, err := marshalItem(val)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case []any:
		list := make([]types.AttributeValue, 0, len(val))
		for _, elem := range val {
			av, err := marshalValue(elem)
			if err != nil {
				return nil, err
			}
			list = append(list, av)
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	default:
		return attributevalue.Marshal(val)
	}
}

func unmarshalValue(av types.AttributeValue) (any, error) {
	switch val := av.(type) {
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberS:
		return val.Value, nil
	case *types.AttributeValueMemberN:
		return json.Number(val.Value), nil
	case *types.AttributeValueMemberBOOL:
		return val.Value, nil
	case *types.AttributeValueMemberM:
		m := make(map[string]any, len(val.Value))
		for k, inner := range val.Value {
			v, err := unmarshalValue(inner)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		return m, nil
	case *types.AttributeValueMemberL:
		list := make([]any, 0, len(val.Value))
		for _, inner := range val.Value {
			v, err := unmarshalValue(inner)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v any
		if err := attributevalue.Unmarshal(av, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
