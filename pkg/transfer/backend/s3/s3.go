// Package s3 implements a backend for S3 and S3-compatible object stores
// such as MinIO and R2.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func init() {
	backend.Register("s3", NewBackend)
}

// defaultCacheControl is set on written objects unless cache_control
// overrides it.
const defaultCacheControl = "no-cache"

// Backend stores objects in one S3 bucket below an optional key prefix.
type Backend struct {
	client       *s3.Client
	bucket       string
	prefix       string
	region       string
	cacheControl string
	sse          types.ServerSideEncryption
}

// NewBackend creates an S3 backend. Recognized keys: bucket (required),
// region, prefix, endpoint, access_key, secret_key, force_path_style,
// cache_control and sse (AES256 or aws:kms).
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	bucket := cfg["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	region := cfg["region"]
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey := cfg["access_key"]; accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, cfg["secret_key"], ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg["force_path_style"] == "true"
		if endpoint := cfg["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	sse := types.ServerSideEncryption(cfg["sse"])
	switch sse {
	case "", types.ServerSideEncryptionAes256, types.ServerSideEncryptionAwsKms:
	default:
		return nil, fmt.Errorf("s3 backend: unsupported sse %q", sse)
	}

	cacheControl := cfg["cache_control"]
	if cacheControl == "" {
		cacheControl = defaultCacheControl
	}

	return &Backend{
		client:       client,
		bucket:       bucket,
		prefix:       cfg["prefix"],
		region:       region,
		cacheControl: cacheControl,
		sse:          sse,
	}, nil
}

func (b *Backend) Type() string {
	return "s3"
}

func (b *Backend) Read(ctx context.Context, objectPath string) (*backend.Object, error) {
	key := b.fullPath(objectPath)

	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", b.bucket, key, err)
	}

	size := int64(-1)
	if output.ContentLength != nil {
		size = *output.ContentLength
	}
	return &backend.Object{Body: output.Body, Size: size}, nil
}

func (b *Backend) Write(ctx context.Context, objectPath string, data io.Reader) error {
	key := b.fullPath(objectPath)

	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}

	if err := b.put(ctx, key, content, false); err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", b.bucket, key, err)
	}
	return nil
}

// put uploads content to key. With ifAbsent the write is conditional on the
// key not existing yet.
func (b *Backend) put(ctx context.Context, key string, content []byte, ifAbsent bool) error {
	input := &s3.PutObjectInput{
		Bucket:        &b.bucket,
		Key:           &key,
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/json"),
		CacheControl:  aws.String(b.cacheControl),
	}
	if b.sse != "" {
		input.ServerSideEncryption = b.sse
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	}
	_, err := b.client.PutObject(ctx, input)
	return err
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	key := b.fullPath(objectPath)

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// Lock creates the lock object with a conditional put. A stale lock is
// deleted and the put is retried once.
func (b *Backend) Lock(ctx context.Context, objectPath string, info backend.LockInfo) (backend.Lock, error) {
	lockKey := b.fullPath(objectPath + ".lock")

	info.ID = uuid.New().String()
	info.Path = objectPath
	info.Created = time.Now()

	lockData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := b.put(ctx, lockKey, lockData, true)
		if err == nil {
			return &s3Lock{backend: b, key: lockKey, info: info}, nil
		}
		if !isPreconditionFailed(err) {
			return nil, fmt.Errorf("failed to create lock: %w", err)
		}

		existing, readErr := b.readLock(ctx, lockKey)
		if readErr == nil && !existing.Stale(time.Now()) {
			return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
		}
		if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &b.bucket, Key: &lockKey}); err != nil {
			return nil, fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	return nil, &backend.LockError{Info: backend.LockInfo{Path: objectPath}, Err: backend.ErrLocked}
}

func (b *Backend) readLock(ctx context.Context, key string) (backend.LockInfo, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
	})
	if err != nil {
		return backend.LockInfo{}, err
	}
	defer output.Body.Close()

	var info backend.LockInfo
	if err := json.NewDecoder(output.Body).Decode(&info); err != nil {
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

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func isPreconditionFailed(err error) bool {
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusPreconditionFailed
}

type s3Lock struct {
	backend *Backend
	key     string
	info    backend.LockInfo
}

func (l *s3Lock) ID() string {
	return l.info.ID
}

func (l *s3Lock) Unlock(ctx context.Context) error {
	_, err := l.backend.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &l.backend.bucket,
		Key:    &l.key,
	})
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *s3Lock) Info() backend.LockInfo {
	return l.info
}
