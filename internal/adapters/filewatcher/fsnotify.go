// Package filewatcher turns fsnotify events into ports.FileEvent values.
package filewatcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

const eventBuffer = 16

// DefaultPatterns matches rule files.
var DefaultPatterns = []string{"*.yaml", "*.yml"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
// Only base names matching one of its glob patterns are reported.
type FSNotifyWatcher struct {
	watcher  *fsnotify.Watcher
	patterns []string
	logger   *slog.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewFSNotifyWatcher creates a watcher for the given glob patterns
// (matched case-insensitively against base names). No patterns means DefaultPatterns.
func NewFSNotifyWatcher(patterns []string, logger *slog.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSNotifyWatcher{
		watcher:  w,
		patterns: lowered,
		logger:   logger.With("component", "filewatcher"),
	}, nil
}

// Watch adds dir and forwards matching events until ctx is done or the
// watcher is stopped. The returned channel is closed on exit.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}
	out := make(chan ports.FileEvent, eventBuffer)
	go w.forward(ctx, dir, out)
	return out, nil
}

func (w *FSNotifyWatcher) forward(ctx context.Context, dir string, out chan<- ports.FileEvent) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "dir", dir, "error", err)
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op, known := translate(ev.Op)
			if !known || !w.matches(ev.Name) {
				continue
			}
			w.logger.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
			select {
			case out <- ports.FileEvent{Path: ev.Name, Operation: op}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Stop closes the underlying watcher. It is safe to call more than once.
func (w *FSNotifyWatcher) Stop() error {
	w.stopOnce.Do(func() { w.stopErr = w.watcher.Close() })
	return w.stopErr
}

func (w *FSNotifyWatcher) matches(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// translate maps an fsnotify op onto a FileOperation. Editors that save by
// writing a temp file and renaming it over the original surface as a
// rename or create; both count as a change. Chmod is ignored.
func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return ports.FileDeleted, true
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Rename):
		return ports.FileModified, true
	}
	return 0, false
}
