// Package inbox watches a directory that bags are uploaded or copied into, and reports each
// bag once it stops changing.
package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/birkland/dansbag/metadata"
	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Arrival is called for every bag that settled in the inbox
type Arrival func(ctx context.Context, dir string)

// Watcher reports the bags in an inbox directory.  An entry of the inbox is a bag once it
// is a directory holding a bagit.txt, and it is reported when nothing under it changed for
// the settle period.  A bag that changes after it was reported is reported again.
type Watcher struct {
	dir     string
	settle  time.Duration
	log     *zap.Logger
	watcher *fsnotify.Watcher
	pending map[string]time.Time
}

// New watches the given inbox directory, which must exist
func New(dir string, settle time.Duration, log *zap.Logger) (*Watcher, error) {
	addr, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "could not calculate absolute path of %s", dir)
	}
	if log == nil {
		log = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrapf(err, "could not create file system watcher")
	}

	w := &Watcher{
		dir:     addr,
		settle:  settle,
		log:     log.With(zap.String("inbox", addr)),
		watcher: fw,
		pending: make(map[string]time.Time),
	}

	if err := w.watch(addr); err != nil {
		fw.Close()
		return nil, err
	}

	entries, err := os.ReadDir(addr)
	if err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "could not read inbox %s", addr)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.pending[e.Name()] = time.Time{}
		}
	}
	return w, nil
}

// Run reports settled bags, one at a time, until the context is done.  The watcher is
// closed when Run returns.
func (w *Watcher) Run(ctx context.Context, arrived Arrival) error {
	defer w.watcher.Close()

	interval := w.settle / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Info("watching inbox", zap.Duration("settle", w.settle))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("file system watcher closed")
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("file system watcher closed")
			}
			w.log.Warn("file system watcher error", zap.Error(err))
		case now := <-ticker.C:
			for _, name := range w.settled(now) {
				dir := filepath.Join(w.dir, name)
				if _, err := os.Stat(filepath.Join(dir, metadata.DeclarationFile)); err != nil {
					w.log.Debug("not a bag", zap.String("entry", name))
					continue
				}
				arrived(ctx, dir)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	entry := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]

	if event.Name == filepath.Join(w.dir, entry) && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		delete(w.pending, entry)
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.watch(event.Name); err != nil {
				w.log.Warn("could not watch directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
		w.pending[entry] = time.Now()
	}
}

// settled removes and returns the inbox entries that did not change for the settle period
func (w *Watcher) settled(now time.Time) []string {
	var names []string
	for name, last := range w.pending {
		if now.Sub(last) >= w.settle {
			names = append(names, name)
			delete(w.pending, name)
		}
	}
	sort.Strings(names)
	return names
}

// watch adds the directory, and every directory under it, to the watcher
func (w *Watcher) watch(dir string) error {
	return godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			return errors.Wrapf(w.watcher.Add(path), "could not watch %s", path)
		},
	})
}
