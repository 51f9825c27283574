// Package service provides business-logic for the app
package service

import (
	"context"
	"io"
	"time"

	"github.com/wb-go/wbf/retry"
)

// TaskPublisher - contract for the batch-task queue
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// PictureStorage - contract for the object store holding the renditions
type PictureStorage interface {
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// ImageSource - contract for the external image provider used by batch ingestion
type ImageSource interface {
	Fetch(ctx context.Context, searchText string, index int) ([]byte, string, error)
}

// Queue/source retry strategy - values could move to config/env later
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}
