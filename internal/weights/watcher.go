package weights

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// =============================================================================
// TABLE HOT-RELOAD WATCHER
// =============================================================================

// Watcher rebuilds the table whenever its source file changes. Each reload yields a
// brand new Table; tables already handed out are never touched.
type Watcher struct {
	watcher *fsnotify.Watcher
	path    string
	reloads chan *Table
	log     zerolog.Logger
	done    chan struct{}
}

// NewWatcher starts watching path. Reloaded tables are delivered on Reloads().
func NewWatcher(path string, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory so editors that replace the file via rename are still seen.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		watcher: fw,
		path:    abs,
		reloads: make(chan *Table, 1),
		log:     log,
		done:    make(chan struct{}),
	}

	go w.watchLoop()

	return w, nil
}

// Reloads delivers freshly built tables. Only the newest pending table is kept.
func (w *Watcher) Reloads() <-chan *Table {
	return w.reloads
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			table, err := LoadFile(w.path)
			if err != nil {
				w.log.Warn().Err(err).Str("path", w.path).Msg("Weight table reload failed, keeping current table")
				continue
			}
			w.log.Info().Str("path", w.path).Int("symbols", len(table.vectors)).Msg("Weight table reloaded")
			w.deliver(table)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("Weight table watcher error")
		}
	}
}

func (w *Watcher) deliver(t *Table) {
	// Drop a stale pending table so the consumer always sees the latest file contents.
	select {
	case <-w.reloads:
	default:
	}
	select {
	case w.reloads <- t:
	case <-w.done:
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
