package core

import (
	"context"
	"errors"
	"io"
	"time"
)

const (
	BlobDriverMemory = "memory"
	BlobDriverS3     = "s3"
)

var ErrBlobNotFound = errors.New("blob not found")

type (
	BlobPutOptions struct {
		ContentType string
		Metadata    map[string]string
	}

	BlobInfo struct {
		Key          string            `json:"key"`
		Size         int64             `json:"size"`
		ContentType  string            `json:"contentType,omitempty"`
		Metadata     map[string]string `json:"metadata,omitempty"`
		LastModified time.Time         `json:"lastModified"`
	}

	// BlobStore is any service that can keep uploaded files.
	BlobStore interface {
		Put(ctx context.Context, key string, r io.Reader, opts BlobPutOptions) (BlobInfo, error)
		Get(ctx context.Context, key string) (BlobInfo, io.ReadCloser, error)
		Delete(ctx context.Context, key string) (bool, error)
		List(ctx context.Context, prefix string) ([]BlobInfo, error)
		Driver() string
	}
)
