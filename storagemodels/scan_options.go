package storagemodels

import "time"

// ScanOptions configures how table-scanning backends page through a table
type ScanOptions struct {
	PageSize     int32         // Items per page (default: 100)
	MaxRetries   int           // Retry attempts for throttled pages (default: 3)
	RetryBackoff time.Duration // Backoff between retries (default: 200ms)
}

// ScanOption is a functional option for configuring scans
type ScanOption func(*ScanOptions)

// DefaultScanOptions returns default scan options
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		PageSize:     100,
		MaxRetries:   3,
		RetryBackoff: 200 * time.Millisecond,
	}
}

// WithPageSize sets the scan page size
func WithPageSize(size int32) ScanOption {
	return func(opts *ScanOptions) {
		opts.PageSize = size
	}
}

// WithMaxRetries sets the maximum retry attempts
func WithMaxRetries(retries int) ScanOption {
	return func(opts *ScanOptions) {
		opts.MaxRetries = retries
	}
}

// WithRetryBackoff sets the retry backoff duration
func WithRetryBackoff(backoff time.Duration) ScanOption {
	return func(opts *ScanOptions) {
		opts.RetryBackoff = backoff
	}
}
