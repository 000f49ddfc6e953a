/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeTable is an in-memory stand-in for the DynamoDB API. Scan supports
// the EntityType filter, Limit and ExclusiveStartKey; conditions support
// attribute_not_exists(PK) only.
type fakeTable struct {
	mu        sync.Mutex
	items     map[string]map[string]types.AttributeValue
	scans     int
	throttle  int
	transacts []*sdk.TransactWriteItemsInput
	puts      int
	deletes   int
}

var _ API = (*fakeTable)(nil)

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
}

func itemKey(key map[string]types.AttributeValue) string {
	return stringAttr(key[attrPK]) + "|" + stringAttr(key[attrSK])
}

func (f *fakeTable) Scan(ctx context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.throttle > 0 {
		f.throttle--
		return nil, &types.ProvisionedThroughputExceededException{Message: aws.String("slow down")}
	}

	entityType := stringAttr(in.ExpressionAttributeValues[":et"])
	keys := make([]string, 0, len(f.items))
	for k, item := range f.items {
		if stringAttr(item[attrEntityType]) == entityType {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := itemKey(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}
	end := len(keys)
	if in.Limit != nil && start+int(*in.Limit) < end {
		end = start + int(*in.Limit)
	}

	out := &sdk.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, f.items[k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = keyOf(f.items[keys[end-1]])
	}
	return out, nil
}

func (f *fakeTable) PutItem(ctx context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := itemKey(in.Item)
	if _, exists := f.items[k]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	f.items[k] = in.Item
	f.puts++
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeTable) DeleteItem(ctx context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, itemKey(in.Key))
	f.deletes++
	return &sdk.DeleteItemOutput{}, nil
}

func (f *fakeTable) TransactWriteItems(ctx context.Context, in *sdk.TransactWriteItemsInput, _ ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts = append(f.transacts, in)

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	canceled := false
	for i, ti := range in.TransactItems {
		reasons[i].Code = aws.String("None")
		if ti.Put != nil && ti.Put.ConditionExpression != nil {
			if _, exists := f.items[itemKey(ti.Put.Item)]; exists {
				reasons[i].Code = aws.String("ConditionalCheckFailed")
				canceled = true
			}
		}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.items[itemKey(ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.items, itemKey(ti.Delete.Key))
		}
	}
	return &sdk.TransactWriteItemsOutput{}, nil
}

func (f *fakeTable) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
