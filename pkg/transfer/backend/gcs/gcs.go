// Package gcs implements a Google Cloud Storage backend.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func init() {
	backend.Register("gcs", NewBackend)
}

// Backend stores objects in one GCS bucket below an optional prefix.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackend creates a GCS backend. Recognized keys: bucket (required),
// prefix, credentials (file path), credentials_json, endpoint (emulator).
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	bucketName := cfg["bucket"]
	if bucketName == "" {
		return nil, fmt.Errorf("gcs backend requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	if credentialsFile := cfg["credentials"]; credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if credentialsJSON := cfg["credentials_json"]; credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	if endpoint := cfg["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Backend{
		client: client,
		bucket: bucketName,
		prefix: cfg["prefix"],
	}, nil
}

func (b *Backend) Type() string {
	return "gcs"
}

func (b *Backend) object(objectPath string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.fullPath(objectPath))
}

func (b *Backend) Read(ctx context.Context, objectPath string) (*backend.Object, error) {
	reader, err := b.object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.bucket, b.fullPath(objectPath), err)
	}

	return &backend.Object{Body: reader, Size: reader.Attrs.Size}, nil
}

func (b *Backend) Write(ctx context.Context, objectPath string, data io.Reader) error {
	writer := b.object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", b.bucket, b.fullPath(objectPath), err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	_, err := b.object(objectPath).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// Lock writes path.lock with a DoesNotExist precondition so two publishers
// cannot both create it. A stale lock is deleted first.
func (b *Backend) Lock(ctx context.Context, objectPath string, info backend.LockInfo) (backend.Lock, error) {
	handle := b.object(objectPath + ".lock")

	if existing, err := readLock(ctx, handle); err == nil {
		if !existing.Stale(time.Now()) {
			return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
		}
		if err := handle.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	info.ID = uuid.New().String()
	info.Path = objectPath
	info.Created = time.Now()

	lockData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	writer := handle.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(lockData); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}
	if err := writer.Close(); err != nil {
		if existing, readErr := readLock(ctx, handle); readErr == nil {
			return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
		}
		return nil, fmt.Errorf("failed to close lock writer: %w", err)
	}

	return &gcsLock{handle: handle, info: info}, nil
}

func readLock(ctx context.Context, handle *storage.ObjectHandle) (backend.LockInfo, error) {
	reader, err := handle.NewReader(ctx)
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer reader.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(reader).Decode(&info); err != nil {
		return backend.LockInfo{}, err
	}
	return info, nil
}

func (b *Backend) fullPath(objectPath string) string {
	if b.prefix == "" {
		return objectPath
	}
	return path.Join(b.prefix, objectPath)
}

// Close closes the GCS client.
func (b *Backend) Close() error {
	return b.client.Close()
}

type gcsLock struct {
	handle *storage.ObjectHandle
	info   backend.LockInfo
}

func (l *gcsLock) ID() string {
	return l.info.ID
}

func (l *gcsLock) Unlock(ctx context.Context) error {
	err := l.handle.Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *gcsLock) Info() backend.LockInfo {
	return l.info
}

var _ backend.Backend = (*Backend)(nil)
