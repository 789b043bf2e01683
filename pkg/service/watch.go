package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchDebounce coalesces the bursts of events editors and atomic renames
// produce for one save.
const watchDebounce = 100 * time.Millisecond

// Watcher reloads the local file when it changes.
type Watcher struct {
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Watch starts reloading the local file into the store whenever it is
// written or replaced. The parent directory is watched so that atomic
// replacements are seen. Reload failures are logged and the previous state
// is kept. The watch stops when ctx is done or Close is called.
func (s *Service) Watch(ctx context.Context) (*Watcher, error) {
	if s.localFile == "" {
		return nil, fmt.Errorf("no local config file to watch")
	}
	target, err := filepath.Abs(s.localFile)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(target)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(target), err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{fsw: fsw, cancel: cancel, done: make(chan struct{})}
	go s.watchLoop(ctx, w, target)

	s.logger.Info("watching local config", zap.String("file", target))
	return w, nil
}

func (s *Service) watchLoop(ctx context.Context, w *Watcher, target string) {
	defer close(w.done)
	defer w.fsw.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			s.logger.Warn("file watcher error", zap.Error(err))

		case <-timer.C:
			if err := s.LoadFromLocal(ctx); err != nil {
				s.logger.Error("failed to reload local config", zap.Error(err), zap.String("file", target))
			}
		}
	}
}

// Close stops the watch and waits for it to finish.
func (w *Watcher) Close() error {
	w.once.Do(w.cancel)
	<-w.done
	return nil
}

// Done is closed once the watch has stopped.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}
