package tenantfs

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syltwerk/hotelchat/internal/domain/tenant"
)

// watchDebounce batches bursts of events for one tenant (editors write in
// several steps) into a single invalidation.
const watchDebounce = 200 * time.Millisecond

// Watch invalidates a tenant whenever a file below its directory changes.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := addTree(w, s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.logger.Info("watching tenant directory", "dir", s.dir)

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
	)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	schedule := func(key string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[key]; ok {
			t.Reset(watchDebounce)
			return
		}
		pending[key] = time.AfterFunc(watchDebounce, func() {
			mu.Lock()
			delete(pending, key)
			mu.Unlock()
			s.Invalidate(ctx, key)
			s.logger.InfoContext(ctx, "tenant configuration changed", "tenant", key)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if err := addTree(w, ev.Name); err != nil {
					s.logger.Warn("watch new path failed", "path", ev.Name, "error", err)
				}
			}
			if key := s.tenantOf(ev.Name); key != "" {
				schedule(key)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("tenant watcher error", "error", err)
		}
	}
}

// tenantOf returns the tenant key owning path, or "" for paths outside a tenant directory.
func (s *Store) tenantOf(path string) string {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	key, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if !tenant.ValidKey(key) {
		return ""
	}
	return normalizeKey(key)
}

// addTree watches root and every directory below it. A root that is a plain
// file is ignored since its parent is already watched.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(path)
	})
}
