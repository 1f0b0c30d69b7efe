// Package watch re-runs detection on a local page whenever the file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dtnitsch/web-locator/internal/common"
	"github.com/dtnitsch/web-locator/models"
	"github.com/dtnitsch/web-locator/pkg/engine"
	"github.com/dtnitsch/web-locator/pkg/pagination"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 200 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Container enables pagination detection for the list it names.
	Container string
	Debounce  time.Duration
	Fallbacks bool
}

// Update is emitted once at start and after every settled change.
type Update struct {
	Path       string                   `json:"path" yaml:"path"`
	Version    int                      `json:"version" yaml:"version"`
	Groups     *models.GroupsResult     `json:"groups,omitempty" yaml:"groups,omitempty"`
	Pagination *models.PaginationResult `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Error      string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Watcher reloads one file into a single engine. Each reload replaces the
// engine's document, which drops every cache built for the previous one.
type Watcher struct {
	env     *common.Env
	path    string
	opts    Options
	engine  *engine.Engine
	watcher *fsnotify.Watcher
	emit    func(Update)
	logger  *slog.Logger
	version int
}

// New watches path. emit receives every update from the Run goroutine.
func New(env *common.Env, path string, opts Options, emit func(Update)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often replace files by rename, so the directory is watched.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	e := env.NewEngine()
	e.RequestFallbacks(opts.Fallbacks)
	return &Watcher{
		env:     env,
		path:    abs,
		opts:    opts,
		engine:  e,
		watcher: fw,
		emit:    emit,
		logger:  env.Logger,
	}, nil
}

// Run emits the initial analysis and then one update per burst of changes,
// until ctx is done. The file watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.close()

	w.reload(ctx)

	var settle *time.Timer
	var settled <-chan time.Time
	defer func() {
		if settle != nil {
			settle.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("watched file changed", "path", ev.Name, "op", ev.Op.String())
			if settle == nil {
				settle = time.NewTimer(w.opts.Debounce)
				settled = settle.C
			} else {
				settle.Reset(w.opts.Debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-settled:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) close() {
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("failed to close watcher", "error", err)
	}
	w.engine.Cleanup()
}

func (w *Watcher) reload(ctx context.Context) {
	w.version++
	up := Update{Path: w.path, Version: w.version}

	doc, _, err := w.env.Load(ctx, w.path)
	if err != nil {
		// A half-written or removed file clears the engine until the next change.
		w.engine.SetDocument(nil)
		up.Error = err.Error()
		w.logger.Warn("reload failed", "path", w.path, "error", err)
		w.emit(up)
		return
	}
	w.engine.SetDocument(doc)

	groups := w.engine.DetectGroups()
	up.Groups = &groups
	if w.opts.Container != "" {
		res := w.engine.DetectPagination(w.opts.Container, pagination.Options{SkipInfiniteScroll: true})
		up.Pagination = &res
	}
	w.logger.Info("page reloaded", "path", w.path, "version", w.version, "groups", len(groups.Groups))
	w.emit(up)
}
