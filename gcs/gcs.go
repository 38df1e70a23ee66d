// SPDX-FileCopyrightText: 2026 Jarvus Innovations
// SPDX-License-Identifier: MIT

// Package gcs adapts Google Cloud Storage to the narrow surface the
// pipeline needs, with retry-on-transient semantics on every call.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const DefaultTimeout = 60 * time.Second

const defaultMaxRetries = 5

// BlobRef identifies one stored object.
type BlobRef struct {
	Name string
	Size int64
}

// Store is the object-store surface the pipeline depends on. *Client
// implements it against GCS; tests substitute in-memory fakes.
type Store interface {
	List(ctx context.Context, prefix string) ([]BlobRef, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte) error
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}

type Client struct {
	bucket     *storage.BucketHandle
	timeout    time.Duration
	maxRetries uint64
}

// NewClient opens a bucket. The name may carry a gs:// prefix. The
// timeout bounds each individual storage call, not a whole retry run.
func NewClient(ctx context.Context, bucket string, timeout time.Duration) (*Client, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		bucket:     c.Bucket(TrimScheme(bucket)),
		timeout:    timeout,
		maxRetries: defaultMaxRetries,
	}, nil
}

// TrimScheme strips a gs:// prefix off a bucket name.
func TrimScheme(bucket string) string {
	return strings.TrimPrefix(bucket, "gs://")
}

type ErrInvalidURI string

func (e ErrInvalidURI) Error() string {
	return fmt.Sprintf("invalid gs:// object URI: %q", string(e))
}

// ParseURI splits a gs://bucket/object URI.
func ParseURI(uri string) (bucket, name string, err error) {
	trimmed, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", ErrInvalidURI(uri)
	}
	bucket, name, ok = strings.Cut(trimmed, "/")
	if !ok || bucket == "" || name == "" {
		return "", "", ErrInvalidURI(uri)
	}
	return bucket, name, nil
}

// Transient reports whether a storage error is worth retrying: rate
// limits, server-side failures, IAM propagation delays, and transport
// timeouts.
func Transient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 403, 429, 500, 503:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

// retry runs op under the per-call timeout, retrying transient failures
// with truncated exponential backoff until the retry ceiling or the
// parent context gives out.
func (c *Client) retry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(func() error {
		opCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		err := op(opCtx)
		if err != nil && !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// List returns every object under prefix, in the lexicographic name
// order the service guarantees.
func (c *Client) List(ctx context.Context, prefix string) ([]BlobRef, error) {
	var blobs []BlobRef
	err := c.retry(ctx, func(ctx context.Context) error {
		blobs = blobs[:0]
		it := c.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
		for {
			attrs, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return err
			}
			blobs = append(blobs, BlobRef{Name: attrs.Name, Size: attrs.Size})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return blobs, nil
}

func (c *Client) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, func(ctx context.Context) error {
		r, err := c.bucket.Object(name).NewReader(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		data, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return data, nil
}

func (c *Client) Put(ctx context.Context, name string, data []byte) error {
	err := c.retry(ctx, func(ctx context.Context) error {
		w := c.bucket.Object(name).NewWriter(ctx)
		// Single-request upload: the object appears atomically or not
		// at all, so a crashed write never leaves a partial key.
		w.ChunkSize = 0
		if _, err := w.Write(data); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	var found bool
	err := c.retry(ctx, func(ctx context.Context) error {
		_, err := c.bucket.Object(name).Attrs(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return found, nil
}

// Delete removes an object; deleting a missing object is not an error.
func (c *Client) Delete(ctx context.Context, name string) error {
	err := c.retry(ctx, func(ctx context.Context) error {
		err := c.bucket.Object(name).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
