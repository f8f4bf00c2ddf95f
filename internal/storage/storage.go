// Package storage provides a thin Google Cloud Storage client for the
// operations the pipeline needs: metadata-only existence probes, streaming
// uploads and downloads, and server-side copies. Uploads and downloads are
// stream-based so multi-gigabyte artifacts never need to fit in memory.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storageapi "google.golang.org/api/storage/v1"
)

// uploadChunkSize is the resumable-media chunk size for streaming uploads.
const uploadChunkSize = 16 * 1024 * 1024 // 16 MiB

// ObjectStore is the narrow store interface consumed by the cache resolver
// and the pipeline. The production implementation is Client; tests use
// in-memory fakes.
type ObjectStore interface {
	// Exists probes for an object without downloading it. A missing object
	// is (false, nil); any other failure is returned as an error.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Upload streams r to gs://bucket/key and returns the stored size.
	// The object becomes visible only if the whole upload commits; a failed
	// upload leaves nothing at the destination.
	Upload(ctx context.Context, bucket, key string, r io.Reader) (int64, error)

	// Download streams gs://bucket/key to w and returns the bytes written.
	Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error)

	// Copy performs a server-side copy between object addresses.
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
}

// Client implements ObjectStore against the Cloud Storage JSON API using
// the platform's default credential chain.
type Client struct {
	svc *storageapi.Service
}

// NewClient constructs a storage client. Extra options are passed through
// to the underlying service, which lets tests point it at a local endpoint.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := storageapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Exists probes object metadata only; the artifacts are large, so probes
// must never download content.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.svc.Objects.Get(bucket, key).Fields("name", "size").Context(ctx).Do()
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, &Error{Op: "stat", Bucket: bucket, Key: key, Cause: err}
	}
	return true, nil
}

// Upload streams r to the destination as a single resumable media upload.
func (c *Client) Upload(ctx context.Context, bucket, key string, r io.Reader) (int64, error) {
	obj, err := c.svc.Objects.
		Insert(bucket, &storageapi.Object{Name: key}).
		Media(r, googleapi.ChunkSize(uploadChunkSize)).
		Context(ctx).
		Do()
	if err != nil {
		return 0, &Error{Op: "upload", Bucket: bucket, Key: key, Cause: err}
	}
	return int64(obj.Size), nil
}

// Download streams the object body to w.
func (c *Client) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	resp, err := c.svc.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		return 0, &Error{Op: "download", Bucket: bucket, Key: key, Cause: err}
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &Error{Op: "download", Bucket: bucket, Key: key, Cause: err}
	}
	return n, nil
}

// Copy performs a server-side object copy; no bytes transit the client.
func (c *Client) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	_, err := c.svc.Objects.Copy(srcBucket, srcKey, dstBucket, dstKey, &storageapi.Object{}).Context(ctx).Do()
	if err != nil {
		return &Error{Op: "copy", Bucket: dstBucket, Key: dstKey, Cause: err}
	}
	return nil
}

// DownloadToFile streams an object to a local path, writing through a
// temporary file so a failed download never leaves a truncated artifact in
// place.
func DownloadToFile(ctx context.Context, store ObjectStore, bucket, key, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := store.Download(ctx, bucket, key, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}
