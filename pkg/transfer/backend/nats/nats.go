// Package nats implements a backend on a NATS JetStream key-value bucket.
// Objects are stored whole as single KV values, so documents must fit the
// server's max payload.
package nats

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func init() {
	backend.Register("nats", NewBackend)
}

// Backend stores objects in one JetStream KV bucket. The connection is
// opened on first use.
type Backend struct {
	url          string
	bucket       string
	prefix       string
	createBucket bool
	options      []nats.Option

	mu   sync.Mutex
	conn *nats.Conn
	kv   jetstream.KeyValue
}

// NewBackend creates a NATS backend. Recognized keys: bucket (required),
// url, prefix, creds, token, create_bucket.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	bucket := cfg["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("nats backend requires 'bucket' configuration")
	}
	if strings.ContainsAny(bucket, " .*>/\\") {
		return nil, fmt.Errorf("invalid nats bucket name %q", bucket)
	}

	url := cfg["url"]
	if url == "" {
		url = nats.DefaultURL
	}
	if !strings.HasPrefix(url, "nats://") && !strings.HasPrefix(url, "tls://") &&
		!strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		return nil, fmt.Errorf("invalid nats url %q", url)
	}

	opts := []nats.Option{
		nats.Name("smartcfg"),
		nats.Timeout(10 * time.Second),
	}
	if creds := cfg["creds"]; creds != "" {
		opts = append(opts, nats.UserCredentials(creds))
	} else if token := cfg["token"]; token != "" {
		opts = append(opts, nats.Token(token))
	}

	return &Backend{
		url:          url,
		bucket:       bucket,
		prefix:       strings.Trim(cfg["prefix"], "/"),
		createBucket: cfg["create_bucket"] == "true",
		options:      opts,
	}, nil
}

func (b *Backend) Type() string {
	return "nats"
}

func (b *Backend) store(ctx context.Context) (jetstream.KeyValue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.kv != nil {
		return b.kv, nil
	}

	conn, err := nats.Connect(b.url, b.options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", b.url, err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, b.bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) && b.createBucket {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      b.bucket,
			Description: "smartcfg documents",
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open bucket %s: %w", b.bucket, err)
	}

	b.conn = conn
	b.kv = kv
	return kv, nil
}

func (b *Backend) Read(ctx context.Context, objectPath string) (*backend.Object, error) {
	kv, err := b.store(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := kv.Get(ctx, b.key(objectPath))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s/%s: %w", b.bucket, b.key(objectPath), err)
	}

	value := entry.Value()
	return &backend.Object{
		Body: io.NopCloser(bytes.NewReader(value)),
		Size: int64(len(value)),
	}, nil
}

func (b *Backend) Write(ctx context.Context, objectPath string, data io.Reader) error {
	kv, err := b.store(ctx)
	if err != nil {
		return err
	}

	content, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if _, err := kv.Put(ctx, b.key(objectPath), content); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", b.bucket, b.key(objectPath), err)
	}
	return nil
}

func (b *Backend) Exists(ctx context.Context, objectPath string) (bool, error) {
	kv, err := b.store(ctx)
	if err != nil {
		return false, err
	}

	_, err = kv.Get(ctx, b.key(objectPath))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return true, nil
}

// Lock creates the lock key only if it is absent. A stale lock is replaced
// with a revision-checked update so two callers cannot both take it over.
func (b *Backend) Lock(ctx context.Context, objectPath string, info backend.LockInfo) (backend.Lock, error) {
	kv, err := b.store(ctx)
	if err != nil {
		return nil, err
	}

	lockKey := b.key(objectPath + ".lock")
	info.ID = uuid.New().String()
	info.Path = objectPath
	info.Created = time.Now()

	lockData, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock info: %w", err)
	}

	_, err = kv.Create(ctx, lockKey, lockData)
	if err == nil {
		return &natsLock{kv: kv, key: lockKey, info: info}, nil
	}
	if !errors.Is(err, jetstream.ErrKeyExists) {
		return nil, fmt.Errorf("failed to create lock: %w", err)
	}

	entry, err := kv.Get(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing lock: %w", err)
	}
	var existing backend.LockInfo
	if err := json.Unmarshal(entry.Value(), &existing); err != nil {
		return nil, fmt.Errorf("failed to parse existing lock: %w", err)
	}
	if !existing.Stale(time.Now()) {
		return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
	}

	if _, err := kv.Update(ctx, lockKey, lockData, entry.Revision()); err != nil {
		return nil, &backend.LockError{Info: existing, Err: backend.ErrLocked}
	}
	return &natsLock{kv: kv, key: lockKey, info: info}, nil
}

// Close drains the connection if one was opened.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Drain()
	b.conn = nil
	b.kv = nil
	return err
}

// key maps an object path to a KV key. Slashes are valid in KV keys; a
// leading one is not.
func (b *Backend) key(objectPath string) string {
	objectPath = strings.TrimPrefix(objectPath, "/")
	if b.prefix == "" {
		return objectPath
	}
	return path.Join(b.prefix, objectPath)
}

type natsLock struct {
	kv   jetstream.KeyValue
	key  string
	info backend.LockInfo
}

func (l *natsLock) ID() string {
	return l.info.ID
}

func (l *natsLock) Info() backend.LockInfo {
	return l.info
}

func (l *natsLock) Unlock(ctx context.Context) error {
	if err := l.kv.Delete(ctx, l.key); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
