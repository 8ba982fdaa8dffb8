// Package service holds the application services that coordinate
// repositories, the object store, and the execution engine. Handlers call
// into services; services own the business rules.
package service

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the object-store surface the services consume. The s3
// package provides the production implementation; tests substitute fakes.
type ObjectStore interface {
	PresignUpload(ctx context.Context, objectKey, contentType string, expiry time.Duration) (string, error)
	PresignDownload(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
	GetObject(ctx context.Context, objectKey string) (io.ReadCloser, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeletePrefix(ctx context.Context, prefix string) error
}
