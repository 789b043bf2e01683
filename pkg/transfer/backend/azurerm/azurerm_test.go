package azurerm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

// mockAzureBlobServer serves GET requests for blobs addressed as
// /container/blob.
type mockAzureBlobServer struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func newMockAzureBlobServer() *mockAzureBlobServer {
	return &mockAzureBlobServer{blobs: make(map[string][]byte)}
}

func (m *mockAzureBlobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	data, ok := m.blobs[key]

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !ok {
		w.Header().Set("x-ms-error-code", "BlobNotFound")
		http.Error(w, "BlobNotFound", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func newTestBackend(t *testing.T, mock *mockAzureBlobServer) backend.Backend {
	t.Helper()
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	b, err := NewBackend(map[string]string{
		"storage_account_name": "devstoreaccount1",
		"container_name":       "configs",
		"endpoint":             server.URL + "/",
		"sas_token":            "?sv=2020-08-04&sig=test",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]string
		errorMsg string
	}{
		{"empty config", map[string]string{}, "storage_account_name"},
		{"missing container", map[string]string{"storage_account_name": "test"}, "container_name"},
		{"empty storage account", map[string]string{"storage_account_name": "", "container_name": "test"}, "storage_account_name"},
		{"empty container", map[string]string{"storage_account_name": "test", "container_name": ""}, "container_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBackend(tt.config)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestBackend_Type(t *testing.T) {
	b := newTestBackend(t, newMockAzureBlobServer())
	if b.Type() != "azurerm" {
		t.Errorf("expected type 'azurerm', got %q", b.Type())
	}
}

func TestBackend_fullPath(t *testing.T) {
	tests := []struct {
		prefix   string
		path     string
		expected string
	}{
		{"", "RemoteConfig.json", "RemoteConfig.json"},
		{"game", "RemoteConfig.json", "game/RemoteConfig.json"},
	}
	for _, tt := range tests {
		b := &Backend{prefix: tt.prefix}
		if got := b.fullPath(tt.path); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}

func TestBackend_Read(t *testing.T) {
	mock := newMockAzureBlobServer()
	payload := []byte(`{"version":1,"platforms":[],"entries":[]}`)
	mock.blobs["configs/RemoteConfig.json"] = payload
	b := newTestBackend(t, mock)

	obj, err := b.Read(context.Background(), "RemoteConfig.json")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	defer obj.Body.Close()

	data, _ := io.ReadAll(obj.Body)
	if string(data) != string(payload) {
		t.Errorf("expected %s, got %s", payload, data)
	}
}

func TestBackend_ReadNotFound(t *testing.T) {
	b := newTestBackend(t, newMockAzureBlobServer())

	_, err := b.Read(context.Background(), "missing.json")
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAzureLock_Info(t *testing.T) {
	lock := &azureLock{info: backend.LockInfo{ID: "lock-id", Who: "ci"}}
	if lock.ID() != "lock-id" {
		t.Errorf("expected ID 'lock-id', got %q", lock.ID())
	}
	if lock.Info().Who != "ci" {
		t.Errorf("expected Who 'ci', got %q", lock.Info().Who)
	}
}

func TestToPtr(t *testing.T) {
	p := toPtr("application/json")
	if p == nil || *p != "application/json" {
		t.Errorf("unexpected pointer value %v", p)
	}
}
