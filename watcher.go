package grayv

import (
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/andewx/grayv/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// ShaderWatcher marks shader files dirty when they change on disk so the
// render loop only reloads on demand. Names are slash separated and
// relative to the watched directory.
type ShaderWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
	logger  log.Logger

	mu    sync.Mutex
	dirty map[string]struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// NewShaderWatcher watches dir and the directories holding files, which are
// slash separated names relative to dir such as "sub/quad.vert".
func NewShaderWatcher(dir string, files ...string) (*ShaderWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	for _, d := range watchDirs(dir, files) {
		if err := fw.Add(d); err != nil {
			fw.Close()
			return nil, errors.Wrapf(err, "watch %s", d)
		}
	}
	w := &ShaderWatcher{
		dir:     dir,
		watcher: fw,
		logger:  log.New("watcher"),
		dirty:   make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// watchDirs lists dir followed by every distinct parent directory of files.
func watchDirs(dir string, files []string) []string {
	dirs := []string{dir}
	seen := map[string]bool{".": true}
	for _, f := range files {
		parent := path.Dir(path.Clean(f))
		if seen[parent] {
			continue
		}
		seen[parent] = true
		dirs = append(dirs, filepath.Join(dir, filepath.FromSlash(parent)))
	}
	return dirs
}

func (w *ShaderWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(w.dir, event.Name)
			if err != nil {
				continue
			}
			w.mark(filepath.ToSlash(rel))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warningf("watch %s: %v", w.dir, err)
		}
	}
}

func (w *ShaderWatcher) mark(name string) {
	w.mu.Lock()
	w.dirty[name] = struct{}{}
	w.mu.Unlock()
	w.logger.Debugf("%s changed", name)
}

// Pending reports whether any file changed since the last TakeDirty.
func (w *ShaderWatcher) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirty) > 0
}

// TakeDirty returns the changed names in sorted order and clears the set.
func (w *ShaderWatcher) TakeDirty() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.dirty))
	for name := range w.dirty {
		names = append(names, name)
	}
	w.dirty = make(map[string]struct{})
	sort.Strings(names)
	return names
}

func (w *ShaderWatcher) Close() error {
	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
