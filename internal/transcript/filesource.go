package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileSource tails a transcript file that an external speech-to-text
// process appends to. It watches the file's directory so recreation (log
// rotation, atomic saves) is picked up, and debounces rapid writes.
type FileSource struct {
	path    string
	log     *zap.Logger
	watcher *fsnotify.Watcher
	changed chan struct{}

	mu          sync.RWMutex
	text        string
	clearOffset int
	lastReload  time.Time
	running     bool

	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFileSource creates a file-backed transcript source for path.
func NewFileSource(path string, log *zap.Logger) (*FileSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &FileSource{
		path:     path,
		log:      log,
		watcher:  watcher,
		changed:  make(chan struct{}, 1),
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start loads the current file contents and begins watching for appends.
// Non-blocking; the watch loop runs in its own goroutine until Stop.
func (f *FileSource) Start() error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := f.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if err := f.reload(); err != nil && !os.IsNotExist(err) {
		f.log.Warn("initial transcript read failed", zap.String("path", f.path), zap.Error(err))
	}

	go f.watchLoop()
	return nil
}

// Stop shuts down the watch loop and releases the watcher.
func (f *FileSource) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh
	f.watcher.Close()
}

func (f *FileSource) watchLoop() {
	defer close(f.doneCh)
	for {
		select {
		case <-f.stopCh:
			return
		case event, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if event.Name != f.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			f.mu.Lock()
			if time.Since(f.lastReload) < f.debounce {
				f.mu.Unlock()
				continue
			}
			f.lastReload = time.Now()
			f.mu.Unlock()

			if err := f.reload(); err != nil {
				f.log.Warn("transcript reload failed", zap.String("path", f.path), zap.Error(err))
				continue
			}
			select {
			case f.changed <- struct{}{}:
			default:
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.log.Warn("transcript watcher error", zap.Error(err))
		}
	}
}

// reload reads the whole file; the transcript is small relative to the
// cadence of the loop, so a full re-read beats offset bookkeeping.
func (f *FileSource) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.text = string(data)
	if f.clearOffset > len(f.text) {
		f.clearOffset = 0
	}
	f.mu.Unlock()
	return nil
}

// Transcript returns the file contents captured since the last Clear.
func (f *FileSource) Transcript() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text[f.clearOffset:]
}

// Changes returns the change-signal channel.
func (f *FileSource) Changes() <-chan struct{} {
	return f.changed
}

// Clear hides everything captured so far without touching the file, which
// the external capture process owns.
func (f *FileSource) Clear() {
	f.mu.Lock()
	f.clearOffset = len(f.text)
	f.mu.Unlock()
	select {
	case <-f.changed:
	default:
	}
}
