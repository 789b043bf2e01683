// Package backend defines the blob storage contract used to move config
// documents, and a registry of implementations keyed by type name.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrLocked is returned when a publish lock is already held.
	ErrLocked = errors.New("object is locked")

	// ErrReadOnly is returned by backends that cannot write.
	ErrReadOnly = errors.New("backend is read-only")
)

// StaleLockAge is how old a lock must be before it may be taken over.
const StaleLockAge = time.Hour

// Backend stores opaque objects by path.
type Backend interface {
	// Type returns the registered type name.
	Type() string

	// Read opens the object at path. It returns ErrNotFound when absent.
	Read(ctx context.Context, path string) (*Object, error)

	// Write replaces the object at path.
	Write(ctx context.Context, path string, data io.Reader) error

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)

	// Lock takes the publish lock for path. It returns a *LockError wrapping
	// ErrLocked when someone else holds a lock younger than StaleLockAge.
	Lock(ctx context.Context, path string, info LockInfo) (Lock, error)
}

// Object is an open object. Size is -1 when the backend does not know it.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// LockInfo describes who holds a lock.
type LockInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Who       string    `json:"who"`
	Operation string    `json:"operation"`
	Created   time.Time `json:"created"`
}

// Stale reports whether the lock is old enough to be taken over.
func (i LockInfo) Stale(now time.Time) bool {
	return now.Sub(i.Created) >= StaleLockAge
}

// Lock is a held lock.
type Lock interface {
	ID() string
	Info() LockInfo
	Unlock(ctx context.Context) error
}

// LockError is returned when a lock is held by someone else.
type LockError struct {
	Info LockInfo
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%v: held by %s for %s since %s", e.Err, e.Info.Who, e.Info.Operation, e.Info.Created.Format(time.RFC3339))
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// Factory creates a backend from its string configuration.
type Factory func(config map[string]string) (Backend, error)

// Config selects and configures a backend.
type Config struct {
	Type   string            `json:"type" yaml:"type"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend type available to Create. It is called from the
// init function of each implementation.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("backend: Register factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("backend: Register called twice for " + name)
	}
	registry[name] = factory
}

// Create instantiates the backend named by cfg.Type.
func Create(cfg Config) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q (available: %v)", cfg.Type, Types())
	}

	config := cfg.Config
	if config == nil {
		config = map[string]string{}
	}
	return factory(config)
}

// Types returns the registered backend type names, sorted.
func Types() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
