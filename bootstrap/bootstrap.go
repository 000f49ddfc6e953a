/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package bootstrap wires a configured backend into ready-to-use services.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/config"
	"github.com/suparena/docstore/datastore"
	"github.com/suparena/docstore/datastore/ddb"
	"github.com/suparena/docstore/datastore/mock"
	"github.com/suparena/docstore/datastore/mongodb"
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/metrics"
	"github.com/suparena/docstore/registry"
)

// Backend is an open connection plus the ambient services built from config.
type Backend struct {
	Kind    string
	Log     logger.Logger
	Metrics *metrics.Registry
	// Services caches the services handed out by OpenRegisteredService.
	Services *docstore.ServiceRegistry

	memory *mock.Connection
	mongo  *mongodb.Connection
	dynamo *ddb.Connection
}

// Open connects the backend selected by cfg.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		Kind:     cfg.Backend,
		Services: docstore.NewServiceRegistry(),
		Log: logger.NewLogger(&logger.Config{
			Level:      logger.LogLevel(cfg.Log.Level),
			Output:     os.Stderr,
			JSON:       cfg.Log.JSON,
			TimeFormat: "15:04:05",
		}),
	}
	if cfg.Metrics.Enabled {
		b.Metrics = metrics.NewRegistry(cfg.Metrics.Namespace)
	}

	switch cfg.Backend {
	case config.BackendMemory:
		b.memory = mock.New()
	case config.BackendMongoDB:
		conn, err := mongodb.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		b.mongo = conn
	case config.BackendDynamoDB:
		client, err := ddb.NewClient(ctx, ddb.ClientConfig{
			Region:    cfg.DynamoDB.Region,
			AccessKey: cfg.DynamoDB.AccessKey,
			SecretKey: cfg.DynamoDB.SecretKey,
			Endpoint:  cfg.DynamoDB.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		b.dynamo = ddb.NewConnection(client, cfg.DynamoDB.Table, ddb.WithLogger(b.Log))
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	b.Log.Debug("backend opened", "backend", b.Kind)
	return b, nil
}

// Connection returns the backend's session factory.
func (b *Backend) Connection() datastore.Connection {
	switch {
	case b.memory != nil:
		return b.memory
	case b.mongo != nil:
		return b.mongo
	default:
		return b.dynamo
	}
}

// Transactions returns a TransactionService on the backend.
func (b *Backend) Transactions() *docstore.TransactionService {
	return docstore.NewTransactionService(b.Connection(), b.options()...)
}

// Close releases the backend connection.
func (b *Backend) Close(ctx context.Context) error {
	return b.Connection().Close(ctx)
}

func (b *Backend) options() []docstore.Option {
	return []docstore.Option{docstore.WithLogger(b.Log), docstore.WithMetrics(b.Metrics)}
}

// OpenCollection returns the driver collection called name on b.
func OpenCollection[T any](b *Backend, name string) datastore.Collection[T] {
	switch {
	case b.memory != nil:
		return mock.NewCollection[T](b.memory, name)
	case b.mongo != nil:
		return mongodb.NewCollection[T](b.mongo, name)
	default:
		return ddb.NewCollection[T](b.dynamo, name)
	}
}

// OpenService returns a Service for the collection called name on b.
func OpenService[T any](b *Backend, name string) *docstore.Service[T] {
	return docstore.NewService[T](OpenCollection[T](b, name), b.options()...)
}

// OpenRegisteredService returns the Service for the collection registered
// for T with registry.RegisterCollection. Services are built once per
// backend and kept in b.Services.
func OpenRegisteredService[T any](b *Backend) (*docstore.Service[T], error) {
	name, err := registry.CollectionName[T]()
	if err != nil {
		return nil, err
	}

	services := docstore.Services[T](b.Services)
	if svc, err := services.Get(name); err == nil {
		return svc, nil
	}
	svc := OpenService[T](b, name)
	if err := services.Register(svc); err != nil {
		// lost a race with another caller; use theirs
		return services.Get(name)
	}
	return svc, nil
}
