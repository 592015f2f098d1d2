package observer

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProjectChangeCallback is called with the names that appeared or vanished
// directly under the workspace root
type ProjectChangeCallback func(changed []string)

// ProjectWatcher monitors the workspace root for project directories
type ProjectWatcher struct {
	watcher  *fsnotify.Watcher
	root     string
	callback ProjectChangeCallback
	debounce time.Duration

	// Debounce state
	pending map[string]struct{}
	timer   *time.Timer
	mu      sync.Mutex
}

// NewProjectWatcher starts watching root. Call Start to deliver events.
func NewProjectWatcher(root string, callback ProjectChangeCallback) (*ProjectWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(root); err != nil {
		watcher.Close()
		return nil, err
	}

	return &ProjectWatcher{
		watcher:  watcher,
		root:     filepath.Clean(root),
		callback: callback,
		debounce: 500 * time.Millisecond,
		pending:  make(map[string]struct{}),
	}, nil
}

// Start delivers debounced changes until ctx is cancelled, then closes the watcher
func (pw *ProjectWatcher) Start(ctx context.Context) {
	go func() {
		defer pw.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-pw.watcher.Events:
				if !ok {
					return
				}
				pw.handleEvent(event)
			case err, ok := <-pw.watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("watching workspace", "error", err)
			}
		}
	}()
}

func (pw *ProjectWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Dir(event.Name) != pw.root {
		return
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	pw.mu.Lock()
	defer pw.mu.Unlock()

	pw.pending[name] = struct{}{}

	// Reset or start debounce timer
	if pw.timer != nil {
		pw.timer.Stop()
	}
	pw.timer = time.AfterFunc(pw.debounce, pw.flush)
}

func (pw *ProjectWatcher) flush() {
	pw.mu.Lock()
	pending := pw.pending
	pw.pending = make(map[string]struct{})
	pw.mu.Unlock()

	if pw.callback == nil || len(pending) == 0 {
		return
	}

	names := make([]string, 0, len(pending))
	for n := range pending {
		names = append(names, n)
	}
	sort.Strings(names)
	pw.callback(names)
}

// SetDebounce sets the debounce duration for batching changes
func (pw *ProjectWatcher) SetDebounce(d time.Duration) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.debounce = d
}
