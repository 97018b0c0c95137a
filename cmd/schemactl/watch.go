package main

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// watchFiles calls reload after any of files changes, until ctx is done.
// Bursts of events within settle are collapsed into one reload.
func watchFiles(ctx context.Context, files []string, log *zap.SugaredLogger, reload func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	for _, f := range files {
		if err := w.Add(f); err != nil {
			return err
		}
	}
	log.Infow("watching schema files", "files", files)

	const settle = 200 * time.Millisecond
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				if ev.Has(fsnotify.Rename) {
					// editors replace the file; watch the new inode
					_ = w.Add(ev.Name)
				}
				timer = time.After(settle)
			}
		case <-timer:
			timer = nil
			if err := reload(); err != nil {
				log.Errorw("re-sync failed", "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errorw("watch error", "err", err)
		}
	}
}
