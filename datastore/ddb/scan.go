/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.mongodb.org/mongo-driver/bson"
)

// scanCollection returns the committed documents of collection, following
// LastEvaluatedKey until the scan is exhausted.
func (c *Connection) scanCollection(ctx context.Context, collection string) ([]bson.M, error) {
	filter := "#et = :et"
	input := &sdk.ScanInput{
		TableName:                &c.table,
		FilterExpression:         &filter,
		ExpressionAttributeNames: map[string]string{"#et": attrEntityType},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et": &types.AttributeValueMemberS{Value: collection},
		},
		ConsistentRead: aws.Bool(true),
	}
	if c.scan.PageSize > 0 {
		input.Limit = aws.Int32(c.scan.PageSize)
	}

	docs := make([]bson.M, 0)
	pages := 0
	for {
		out, err := c.scanWithRetry(ctx, input)
		if err != nil {
			return nil, err
		}
		pages++

		for _, item := range out.Items {
			doc, err := decode(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	c.log.Debug("scanned collection", "collection", collection, "pages", pages, "items", len(docs))
	return docs, nil
}

// scanWithRetry executes one scan page, retrying throttled requests with a
// linear backoff.
func (c *Connection) scanWithRetry(ctx context.Context, input *sdk.ScanInput) (*sdk.ScanOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= c.scan.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		out, err := c.client.Scan(ctx, input)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		// Don't sleep after last attempt
		if attempt < c.scan.MaxRetries {
			backoff := time.Duration(attempt+1) * c.scan.RetryBackoff
			c.log.Warn("scan throttled, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("scan failed after %d retries: %w", c.scan.MaxRetries, lastErr)
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &limit), errors.As(err, &internal):
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}
