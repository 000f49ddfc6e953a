/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package docstore

import (
	"github.com/suparena/docstore/logger"
	"github.com/suparena/docstore/metrics"
)

type options struct {
	log     logger.Logger
	metrics *metrics.Registry
}

// Option configures a Service or a TransactionService.
type Option func(*options)

// WithLogger sets the logger. Without it the logger carried by the call's
// context is used, see logger.FromContext.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics records operation and transaction metrics into r.
func WithMetrics(r *metrics.Registry) Option {
	return func(o *options) {
		o.metrics = r
	}
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
