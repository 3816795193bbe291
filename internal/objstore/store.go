// Package objstore is the object-storage layer: a small Store interface
// with AWS S3, MinIO and in-memory implementations, plus the JSON-lines
// helpers the job reads and writes through.
package objstore

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("object not found")
	// ErrNoObjects is returned when a glob matches nothing.
	ErrNoObjects = errors.New("no objects match")
)

// Store is one storage session. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte, contentType string) error
	// List returns every key under prefix, in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend   string // "s3" (default) or "minio"
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Open acquires a storage session. Credential problems surface here
// rather than on first use.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "s3":
		return NewS3Store(ctx, opts)
	case "minio":
		return NewMinioStore(opts)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
