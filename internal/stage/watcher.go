package stage

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// rslWatcher watches the run directory while the preprocessor executes and
// logs the first appearance of each per-rank diagnostic file (rsl.out.0000,
// rsl.error.0000, ...). Purely for operator visibility: the authoritative
// diagnostic emission happens after the process exits.
type rslWatcher struct {
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu   sync.Mutex
	seen map[string]bool
	done chan struct{}
}

func newRSLWatcher(logger *zap.Logger) (*rslWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &rslWatcher{
		watcher: w,
		logger:  logger,
		seen:    make(map[string]bool),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching dir. Non-blocking.
func (w *rslWatcher) Start(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		w.watcher.Close()
		close(w.done)
		return err
	}

	go func() {
		defer close(w.done)
		for {
			select {
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				name := filepath.Base(ev.Name)
				if !strings.HasPrefix(name, "rsl.") {
					continue
				}
				w.mu.Lock()
				first := !w.seen[name]
				w.seen[name] = true
				w.mu.Unlock()
				if first {
					w.logger.Info("diagnostic file appeared", zap.String("file", name))
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("run directory watch error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Stop closes the watcher and waits for the event loop to drain.
func (w *rslWatcher) Stop() {
	w.watcher.Close()
	<-w.done
}
