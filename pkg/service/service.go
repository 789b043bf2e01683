// Package service loads config documents into a store from a remote transfer
// or the local fallback file, and publishes edited documents.
package service

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/user"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/errors"
	"github.com/davidthor/smartcfg/pkg/store"
	"github.com/davidthor/smartcfg/pkg/transfer"
	"github.com/davidthor/smartcfg/pkg/transfer/backend"
	"github.com/davidthor/smartcfg/pkg/transfer/backend/local"
)

// Source names where a loaded document came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// ErrLoadInProgress is returned when a load is requested while another one
// has not finished.
var ErrLoadInProgress = errors.New(errors.ErrCodeLoadInProgress, "a config load is already in progress")

// InitAction is what Initialize does.
type InitAction string

const (
	InitNone          InitAction = "none"
	InitLoadFromCloud InitAction = "cloud"
	InitLoadFromLocal InitAction = "local"
)

// ParseInitAction accepts none, cloud and local.
func ParseInitAction(s string) (InitAction, error) {
	switch a := InitAction(s); a {
	case InitNone, InitLoadFromCloud, InitLoadFromLocal:
		return a, nil
	case "":
		return InitNone, nil
	default:
		return "", fmt.Errorf("unknown init action %q (expected none, cloud or local)", s)
	}
}

// Metrics receives load and selection events. *metric.Metrics implements it.
type Metrics interface {
	LoadCompleted(source string, err error)
	ObserveDiagnostics(diags []config.Diagnostic)
	SetEntries(n int)
	LanguageSelected(lang config.Language)
}

// Options configures a Service.
type Options struct {
	// Transfer downloads the shared document. Without one, remote loads go
	// straight to the local file.
	Transfer transfer.Transfer

	// LocalFile is the last known good document.
	LocalFile string

	// Who identifies this process in publish locks.
	Who string

	Logger  *zap.Logger
	Metrics Metrics
}

// DefaultOptions returns options reading the fallback document from the
// working directory.
func DefaultOptions() Options {
	return Options{
		LocalFile: config.FileName,
	}
}

// Service feeds a store. Loads are serialized: a second load started
// before the first returns fails with ErrLoadInProgress.
type Service struct {
	store     *store.Store
	transfer  transfer.Transfer
	localFile string
	who       string
	logger    *zap.Logger
	metrics   Metrics

	loading atomic.Bool
}

// New creates a service feeding st.
func New(st *store.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Who == "" {
		opts.Who = defaultWho()
	}
	return &Service{
		store:     st,
		transfer:  opts.Transfer,
		localFile: opts.LocalFile,
		who:       opts.Who,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Store returns the store the service loads into.
func (s *Service) Store() *store.Store {
	return s.store
}

// Initialize runs the configured startup action.
func (s *Service) Initialize(ctx context.Context, action InitAction) error {
	switch action {
	case InitLoadFromCloud:
		_, err := s.LoadFromCloud(ctx, nil)
		return err
	case InitLoadFromLocal:
		return s.LoadFromLocal(ctx)
	default:
		return nil
	}
}

// LoadFromCloud downloads, parses and loads the shared document. When there
// is no transfer, the download fails or the document is malformed, the
// local file is loaded instead. If both fail the store keeps its previous
// state.
func (s *Service) LoadFromCloud(ctx context.Context, progress transfer.ProgressFunc) (Source, error) {
	if !s.loading.CompareAndSwap(false, true) {
		return "", ErrLoadInProgress
	}
	defer s.loading.Store(false)

	remoteErr := s.loadRemote(ctx, progress)
	if remoteErr == nil {
		return SourceRemote, nil
	}
	s.logger.Error("unable to load remote config, checking for local file",
		zap.Error(remoteErr),
		zap.String("file", s.localFile))

	if err := s.loadLocal(ctx); err != nil {
		return "", fmt.Errorf("%w; local fallback failed: %w", remoteErr, err)
	}
	return SourceLocal, nil
}

// LoadFromLocal parses and loads the local file.
func (s *Service) LoadFromLocal(ctx context.Context) error {
	if !s.loading.CompareAndSwap(false, true) {
		return ErrLoadInProgress
	}
	defer s.loading.Store(false)
	return s.loadLocal(ctx)
}

// SelectLanguage forwards to the store and counts the selection.
func (s *Service) SelectLanguage(lang config.Language) {
	s.store.SelectLanguage(lang)
	if s.metrics != nil {
		s.metrics.LanguageSelected(lang)
	}
}

func (s *Service) loadRemote(ctx context.Context, progress transfer.ProgressFunc) error {
	var err error
	defer func() {
		if s.metrics != nil {
			s.metrics.LoadCompleted(string(SourceRemote), err)
		}
	}()

	if s.transfer == nil {
		err = errors.TransportFailure("download", fmt.Errorf("no transfer configured"))
		return err
	}

	var data []byte
	data, err = s.transfer.Download(ctx, progress)
	if err != nil {
		return err
	}

	var doc *config.Document
	doc, err = config.Parse(data)
	if err != nil {
		return err
	}
	s.logger.Info("downloaded remote config", zap.Int("bytes", len(data)))
	s.apply(doc)
	return nil
}

func (s *Service) loadLocal(ctx context.Context) error {
	var err error
	defer func() {
		if s.metrics != nil {
			s.metrics.LoadCompleted(string(SourceLocal), err)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if s.localFile == "" {
		err = errors.NotFoundError("local config file", "")
		return err
	}

	var doc *config.Document
	doc, err = config.ParseFile(s.localFile)
	if err != nil {
		return err
	}
	s.logger.Info("loaded local config", zap.String("file", s.localFile))
	s.apply(doc)
	return nil
}

// apply logs every diagnostic individually and loads doc.
func (s *Service) apply(doc *config.Document) {
	logDiagnostics(s.logger, doc.Diagnostics)
	conflicts := s.store.Load(doc)

	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDiagnostics(doc.Diagnostics)
	s.metrics.ObserveDiagnostics(conflicts)

	n := len(doc.Entries)
	if p := s.store.Platform(); p != "" {
		entries, _ := doc.PlatformEntries(p)
		n += len(entries)
	}
	s.metrics.SetEntries(n - len(conflicts))
}

// Publish validates data and uploads it. A malformed document is never
// uploaded. When the transfer supports locking, the publish lock is held
// for the duration of the upload.
func (s *Service) Publish(ctx context.Context, data []byte, progress transfer.ProgressFunc) (*config.Document, error) {
	doc, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	logDiagnostics(s.logger, doc.Diagnostics)

	if s.transfer == nil {
		return nil, errors.TransportFailure("upload", fmt.Errorf("no transfer configured"))
	}

	if locker, ok := s.transfer.(transfer.Locker); ok {
		lock, err := locker.Lock(ctx, backend.LockInfo{Who: s.who, Operation: "publish"})
		if err != nil {
			var lockErr *backend.LockError
			if stderrors.As(err, &lockErr) {
				return nil, errors.StateLocked(errors.LockInfo{
					ID:        lockErr.Info.ID,
					Path:      lockErr.Info.Path,
					Who:       lockErr.Info.Who,
					Operation: lockErr.Info.Operation,
					Created:   lockErr.Info.Created,
				})
			}
			if !stderrors.Is(err, backend.ErrReadOnly) {
				return nil, errors.BackendError("transfer", "lock", err)
			}
		} else {
			defer func() {
				if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
					s.logger.Warn("failed to release publish lock", zap.Error(err), zap.String("lock_id", lock.ID()))
				}
			}()
		}
	}

	if err := s.transfer.Upload(ctx, data, progress); err != nil {
		return nil, err
	}
	s.logger.Info("published config",
		zap.Int("bytes", len(data)),
		zap.Int("entries", len(doc.Entries)),
		zap.Int("platforms", len(doc.Platforms)))
	return doc, nil
}

// Pull downloads the shared document and, if it parses, replaces the local
// file with it.
func (s *Service) Pull(ctx context.Context, progress transfer.ProgressFunc) (*config.Document, error) {
	if s.transfer == nil {
		return nil, errors.TransportFailure("download", fmt.Errorf("no transfer configured"))
	}
	if s.localFile == "" {
		return nil, errors.NotFoundError("local config file", "")
	}

	data, err := s.transfer.Download(ctx, progress)
	if err != nil {
		return nil, err
	}
	doc, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	logDiagnostics(s.logger, doc.Diagnostics)

	if err := local.WriteFileAtomic(s.localFile, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	s.logger.Info("updated local config", zap.String("file", s.localFile), zap.Int("bytes", len(data)))
	return doc, nil
}

func logDiagnostics(logger *zap.Logger, diags []config.Diagnostic) {
	for _, d := range diags {
		fields := []zap.Field{
			zap.String("code", string(d.Code)),
			zap.String("key", d.Key),
		}
		if d.Platform != "" {
			fields = append(fields, zap.String("platform", string(d.Platform)))
		}
		if d.Severity == config.SeverityError {
			logger.Error(d.Message, fields...)
		} else {
			logger.Warn(d.Message, fields...)
		}
	}
}

func defaultWho() string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		return name
	}
	return name + "@" + host
}
