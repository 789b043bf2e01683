package local

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(map[string]string{"path": t.TempDir()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type() != "local" {
		t.Errorf("expected type 'local', got %q", b.Type())
	}
}

func TestBackend_CreateFromRegistry(t *testing.T) {
	b, err := backend.Create(backend.Config{Type: "local", Config: map[string]string{"path": t.TempDir()}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, ok := b.(*Backend); !ok {
		t.Fatalf("expected *Backend, got %T", b)
	}
}

func TestBackend_ReadWrite(t *testing.T) {
	b, _ := NewBackend(map[string]string{"path": t.TempDir()})
	ctx := context.Background()
	testData := []byte(`{"version":1,"platforms":[],"entries":[]}`)

	if err := b.Write(ctx, "smartcfg/RemoteConfig.json", bytes.NewReader(testData)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	obj, err := b.Read(ctx, "smartcfg/RemoteConfig.json")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	defer obj.Body.Close()

	if obj.Size != int64(len(testData)) {
		t.Errorf("expected size %d, got %d", len(testData), obj.Size)
	}
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		t.Fatalf("read all failed: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("expected %s, got %s", testData, data)
	}
}

func TestBackend_ReadNotFound(t *testing.T) {
	b, _ := NewBackend(map[string]string{"path": t.TempDir()})

	_, err := b.Read(context.Background(), "nonexistent")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBackend_Exists(t *testing.T) {
	b, _ := NewBackend(map[string]string{"path": t.TempDir()})
	ctx := context.Background()

	exists, err := b.Exists(ctx, "a.json")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("expected file to not exist")
	}

	_ = b.Write(ctx, "a.json", strings.NewReader("{}"))

	exists, _ = b.Exists(ctx, "a.json")
	if !exists {
		t.Error("expected file to exist")
	}
}

func TestBackend_Lock(t *testing.T) {
	b, _ := NewBackend(map[string]string{"path": t.TempDir()})
	ctx := context.Background()

	lock, err := b.Lock(ctx, "doc.json", backend.LockInfo{Who: "ci", Operation: "publish"})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if lock.ID() == "" {
		t.Error("expected lock id")
	}
	if lock.Info().Path != "doc.json" {
		t.Errorf("expected path doc.json, got %q", lock.Info().Path)
	}

	_, err = b.Lock(ctx, "doc.json", backend.LockInfo{Who: "other"})
	if !errors.Is(err, backend.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	var lockErr *backend.LockError
	if !errors.As(err, &lockErr) || lockErr.Info.Who != "ci" {
		t.Errorf("expected lock held by ci, got %v", err)
	}

	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	again, err := b.Lock(ctx, "doc.json", backend.LockInfo{Who: "other"})
	if err != nil {
		t.Fatalf("relock failed: %v", err)
	}
	_ = again.Unlock(ctx)
}

func TestBackend_StaleLock(t *testing.T) {
	dir := t.TempDir()
	b, _ := NewBackend(map[string]string{"path": dir})

	stale, _ := json.Marshal(backend.LockInfo{ID: "old", Who: "gone", Created: time.Now().Add(-2 * time.Hour)})
	if err := os.WriteFile(filepath.Join(dir, "doc.json.lock"), stale, 0644); err != nil {
		t.Fatal(err)
	}

	lock, err := b.Lock(context.Background(), "doc.json", backend.LockInfo{Who: "new"})
	if err != nil {
		t.Fatalf("expected stale lock to be replaced, got %v", err)
	}
	if lock.Info().Who != "new" {
		t.Errorf("expected new owner, got %q", lock.Info().Who)
	}
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RemoteConfig.json")

	if err := WriteFileAtomic(path, strings.NewReader("one")); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(path, strings.NewReader("two")); err != nil {
		t.Fatal(err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the target file, got %d entries", len(entries))
	}
	data, _ := os.ReadFile(path)
	if string(data) != "two" {
		t.Errorf("expected 'two', got %q", data)
	}
}
