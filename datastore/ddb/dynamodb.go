/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/storagemodels"
)

// API is the subset of the DynamoDB client the driver uses.
type API interface {
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *sdk.TransactWriteItemsInput, optFns ...func(*sdk.Options)) (*sdk.TransactWriteItemsOutput, error)
}

var _ API = (*sdk.Client)(nil)

// ClientConfig holds the settings for NewClient.
type ClientConfig struct {
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
	Endpoint string
}

// NewClient initializes a DynamoDB client. Static credentials are used when
// an access key is given, otherwise the default AWS credential chain.
func NewClient(ctx context.Context, cfg ClientConfig) (*sdk.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return sdk.NewFromConfig(awsCfg, func(o *sdk.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Connection is a handle on one DynamoDB table.
type Connection struct {
	client API
	table  string
	log    logger.Logger
	scan   storagemodels.ScanOptions
}

var _ datastore.Connection = (*Connection)(nil)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection's logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.log = l
		}
	}
}

// WithScanOptions tunes how collections are scanned.
func WithScanOptions(opts ...storagemodels.ScanOption) Option {
	return func(c *Connection) {
		for _, opt := range opts {
			opt(&c.scan)
		}
	}
}

// NewConnection returns a Connection on table.
func NewConnection(client API, table string, opts ...Option) *Connection {
	c := &Connection{
		client: client,
		table:  table,
		log:    logger.GetDefault(),
		scan:   storagemodels.DefaultScanOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("table", table)
	return c
}

// Table returns the table name.
func (c *Connection) Table() string {
	return c.table
}

// StartSession opens a session. Sessions are client-side; nothing is sent
// to DynamoDB until a transaction commits.
func (c *Connection) StartSession(ctx context.Context) (datastore.Session, error) {
	s := &Session{id: uuid.NewString(), conn: c}
	c.log.Debug("session started", "session", s.id)
	return s, nil
}

// Close is a no-op; the SDK client holds no connections that need closing.
func (c *Connection) Close(ctx context.Context) error {
	return nil
}
