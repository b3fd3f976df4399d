package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/0xcro3dile/medchat-go/internal/domain/entities"
	"github.com/0xcro3dile/medchat-go/internal/domain/ports"
)

const defaultDebounce = 200 * time.Millisecond

// Applier accepts a new rule set, rejecting it if it does not compile.
type Applier interface {
	UpdateRules(rs entities.RuleSet) error
}

// Reloader watches a rules file and applies every valid edit.
// An invalid edit is logged and the previous rules stay active.
type Reloader struct {
	path     string
	watcher  ports.FileWatcher
	applier  Applier
	debounce time.Duration
	logger   *slog.Logger
}

// NewReloader creates a Reloader for path.
func NewReloader(path string, watcher ports.FileWatcher, applier Applier, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		path:     path,
		watcher:  watcher,
		applier:  applier,
		debounce: defaultDebounce,
		logger:   logger.With("component", "rules", "path", path),
	}
}

// Run blocks until ctx is done or the watcher closes.
func (r *Reloader) Run(ctx context.Context) error {
	events, err := r.watcher.Watch(ctx, filepath.Dir(r.path))
	if err != nil {
		return fmt.Errorf("watching rules: %w", err)
	}
	target := filepath.Clean(r.path)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Path) != target {
				continue
			}
			if ev.Operation == ports.FileDeleted {
				r.logger.Warn("rules file removed, keeping current rules")
				continue
			}
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				timer.Reset(r.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			r.Reload()
		}
	}
}

// Reload reads and applies the rules file once.
func (r *Reloader) Reload() bool {
	rs, err := Load(r.path)
	if err != nil {
		r.logger.Error("rules reload rejected", "error", err)
		return false
	}
	if err := r.applier.UpdateRules(rs); err != nil {
		r.logger.Error("rules reload rejected", "version", rs.Version, "error", err)
		return false
	}
	r.logger.Info("rules reloaded", "version", rs.Version)
	return true
}
