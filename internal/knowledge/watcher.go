package knowledge

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher hot-appends rules when a watched rule pack changes on disk.
// Existing rule IDs are never touched; only rules with new IDs are added.
type Watcher struct {
	service *Service
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	paths   map[string]struct{}
}

// NewWatcher creates a rule pack watcher over the given files.
func NewWatcher(service *Service, paths []string, logger *zap.Logger) (*Watcher, error) {
	if service == nil {
		return nil, fmt.Errorf("knowledge service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		service: service,
		watcher: fw,
		logger:  logger,
		paths:   make(map[string]struct{}, len(paths)),
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to resolve rule pack path %s: %w", p, err)
		}
		// Watch the directory: editors replace files on save, which drops
		// a watch held on the file itself.
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
		}
		w.paths[abs] = struct{}{}
	}

	return w, nil
}

// Run processes file events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, watched := w.paths[abs]; !watched {
				continue
			}
			w.reload(abs)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("rule pack watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(path string) {
	pack, err := LoadRulePack(path)
	if err != nil {
		w.logger.Warn("failed to reload rule pack",
			zap.String("path", path), zap.Error(err))
		return
	}

	added, err := w.service.LoadPack(pack)
	if err != nil {
		w.logger.Warn("failed to append rules from pack",
			zap.String("path", path), zap.Error(err))
		return
	}
	if added > 0 {
		w.logger.Info("appended rules from pack",
			zap.String("path", path), zap.Int("added", added))
	}
}
