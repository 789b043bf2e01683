// Package transfer moves serialized config documents between the authoring
// side and a shared location, reporting progress as a fraction in [0,1].
package transfer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/davidthor/smartcfg/pkg/errors"
	"github.com/davidthor/smartcfg/pkg/transfer/backend"
)

// ProgressFunc receives transfer progress between 0 and 1. It is called from
// the goroutine doing the transfer.
type ProgressFunc func(fraction float64)

// Transfer uploads and downloads one config document.
type Transfer interface {
	Upload(ctx context.Context, data []byte, progress ProgressFunc) error
	Download(ctx context.Context, progress ProgressFunc) ([]byte, error)
}

// Locker is implemented by transfers whose destination supports a publish
// lock.
type Locker interface {
	Lock(ctx context.Context, info backend.LockInfo) (backend.Lock, error)
}

// BlobTransfer stores the document as a single object in a backend.
type BlobTransfer struct {
	Backend backend.Backend
	Path    string
}

// NewBlobTransfer returns a transfer for the object at path in b.
func NewBlobTransfer(b backend.Backend, path string) *BlobTransfer {
	return &BlobTransfer{Backend: b, Path: path}
}

// Upload writes data to the object. A failed write is returned as a
// TRANSPORT_FAILURE error.
func (t *BlobTransfer) Upload(ctx context.Context, data []byte, progress ProgressFunc) error {
	report(progress, 0)
	r := &progressReader{
		reader:   bytes.NewReader(data),
		total:    int64(len(data)),
		progress: progress,
	}
	if err := t.Backend.Write(ctx, t.Path, r); err != nil {
		return errors.TransportFailure("upload", err).
			WithDetail("backend", t.Backend.Type()).
			WithDetail("path", t.Path)
	}
	report(progress, 1)
	return nil
}

// Download reads the whole object. A missing object is reported as
// NOT_FOUND wrapped in TRANSPORT_FAILURE so callers can fall back on either.
func (t *BlobTransfer) Download(ctx context.Context, progress ProgressFunc) ([]byte, error) {
	report(progress, 0)
	obj, err := t.Backend.Read(ctx, t.Path)
	if err != nil {
		if stderrors.Is(err, backend.ErrNotFound) {
			err = errors.NotFoundError("object", t.Path)
		}
		return nil, errors.TransportFailure("download", err).
			WithDetail("backend", t.Backend.Type()).
			WithDetail("path", t.Path)
	}
	defer obj.Body.Close()

	var buf bytes.Buffer
	if obj.Size > 0 {
		buf.Grow(int(obj.Size))
	}
	r := &progressReader{reader: obj.Body, total: obj.Size, progress: progress}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, errors.TransportFailure("download", fmt.Errorf("reading %s: %w", t.Path, err))
	}
	report(progress, 1)
	return buf.Bytes(), nil
}

// Lock takes the backend's publish lock for the object.
func (t *BlobTransfer) Lock(ctx context.Context, info backend.LockInfo) (backend.Lock, error) {
	return t.Backend.Lock(ctx, t.Path, info)
}

func report(progress ProgressFunc, fraction float64) {
	if progress != nil {
		progress(fraction)
	}
}

// progressReader reports bytes read as a fraction of total. With an unknown
// total it reports nothing until the caller reports completion.
type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.total > 0 {
		r.read += int64(n)
		fraction := float64(r.read) / float64(r.total)
		if fraction > 1 {
			fraction = 1
		}
		report(r.progress, fraction)
	}
	return n, err
}
