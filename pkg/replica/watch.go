package replica

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of writes one transaction produces.
const DefaultDebounce = 50 * time.Millisecond

// Watcher reports writes to a SQLite database file. Other processes
// commit into the -wal file first, so both it and the main file count.
//
// Watching the directory rather than the files keeps working when the WAL
// is created or truncated after the watcher starts.
type Watcher struct {
	fs       *fsnotify.Watcher
	names    map[string]bool
	debounce time.Duration
	changes  chan struct{}
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewWatcher starts watching dbPath. Call Close to stop.
func NewWatcher(dbPath string, debounce time.Duration, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		fs:       fw,
		names:    map[string]bool{abs: true, abs + "-wal": true},
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		log:      log,
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Changes delivers one value per settled burst of writes. Bursts that
// arrive while a value is pending are merged into it. The channel is
// closed by Close.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops the watcher and waits for it to exit.
func (w *Watcher) Close() error {
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	defer close(w.changes)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.names[filepath.Clean(ev.Name)] || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}
