package jsonfile

import (
	"log"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes a persistence directory and reports external modifications
// of the snapshot files. Each memory system instance owns its directory
// exclusively, so an out-of-band write usually means another process is
// stepping on the store, which is worth surfacing to operators.
type Watcher struct {
	dir      string
	callback func(file string)
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for the given persistence directory.
// callback receives the base name of the modified snapshot file.
func NewWatcher(dir string, callback func(file string)) *Watcher {
	return &Watcher{
		dir:      dir,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Call Stop to clean up.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}
	w.watcher = fsw

	go w.loop()
	log.Printf("jsonfile: watching %s for snapshot changes", w.dir)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
	<-w.done
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(evt.Name)
			// Temp files from our own atomic writes are not external changes.
			if strings.HasSuffix(name, ".tmp") || !strings.HasSuffix(name, ".json") {
				continue
			}
			w.callback(name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("jsonfile: watcher error: %v", err)
		}
	}
}
