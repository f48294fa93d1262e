// Package watcher turns file system notifications on the snapshot and
// config files into debounced rebuild requests.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ritzau/relgraph/pkg/finder"
	"github.com/ritzau/relgraph/pkg/logging"
)

// ChangeType represents the kind of file that changed
type ChangeType int

const (
	ChangeTypeSource ChangeType = iota // entity/relationship snapshot
	ChangeTypeConfig                   // relgraph.toml
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeSource:
		return "source"
	case ChangeTypeConfig:
		return "config"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the burst of notifications a single save produces.
const batchWindow = 100 * time.Millisecond

// FileWatcher watches individual files. It watches their directories so
// editors that save by rename are still seen.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan ChangeEvent

	mu      sync.Mutex
	targets map[string]ChangeType // cleaned absolute path -> kind
	trees   map[string]ChangeType // watched root -> kind of any snapshot below it
	dirs    map[string]bool
}

// NewFileWatcher creates a watcher with no files registered.
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher: w,
		events:  make(chan ChangeEvent, 16),
		targets: make(map[string]ChangeType),
		trees:   make(map[string]ChangeType),
		dirs:    make(map[string]bool),
	}, nil
}

// Watch registers a file. The file need not exist yet; its directory must.
func (fw *FileWatcher) Watch(path string, kind ChangeType) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.addDir(dir); err != nil {
		return err
	}
	fw.targets[abs] = kind
	logging.Debug("watching file", "path", abs, "kind", kind.String())
	return nil
}

// WatchTree registers every snapshot file under root, including files
// created later in directories that existed when WatchTree was called.
func (fw *FileWatcher) WatchTree(root string, kind ChangeType) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	abs = filepath.Clean(abs)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != abs && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.addDir(path)
	})
	if err != nil {
		return err
	}
	fw.trees[abs] = kind
	logging.Debug("watching tree", "root", abs, "kind", kind.String())
	return nil
}

// addDir must be called with mu held.
func (fw *FileWatcher) addDir(dir string) error {
	if fw.dirs[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fw.dirs[dir] = true
	return nil
}

// Start begins delivering change events until ctx is cancelled, at which
// point the events channel is closed.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.processEvents(ctx)
}

func (fw *FileWatcher) lookup(name string) (ChangeType, bool) {
	name = filepath.Clean(name)
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if kind, ok := fw.targets[name]; ok {
		return kind, true
	}
	if !finder.IsSnapshotFile(name) {
		return 0, false
	}
	for root, kind := range fw.trees {
		if rel, err := filepath.Rel(root, name); err == nil && !strings.HasPrefix(rel, "..") {
			return kind, true
		}
	}
	return 0, false
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)
	var flushC <-chan time.Time

	flush := func() {
		for _, kind := range []ChangeType{ChangeTypeConfig, ChangeTypeSource} {
			if paths := pending[kind]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: kind, Paths: paths, Timestamp: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}
		pending = make(map[ChangeType][]string)
		flushC = nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			kind, ok := fw.lookup(event.Name)
			if !ok {
				continue
			}
			pending[kind] = appendUnique(pending[kind], filepath.Clean(event.Name))
			if flushC == nil {
				flushC = time.After(batchWindow)
			}

		case <-flushC:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func appendUnique(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
