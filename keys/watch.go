package keys

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 250 * time.Millisecond

// ErrNotFileBundle is returned by WatchFile on bundles without a local file.
var ErrNotFileBundle = errors.New("bundle has no local file to watch")

// WatchFile watches the bundle's file until ctx is done. A change marks the
// bundle stale; the next accessor reloads it. Events are debounced so an
// editor's write-rename sequence produces one reload.
func (b *Bundle) WatchFile(ctx context.Context) error {
	if b.remote || b.path == "" {
		return ErrNotFileBundle
	}
	target, err := filepath.Abs(b.path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: atomic saves replace the inode and drop a
	// file-level watch.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return err
	}

	changed := make(chan struct{}, 1)
	go b.debounceDirty(ctx, changed)
	go b.handleWatcher(ctx, watcher, target, changed)
	return nil
}

func (b *Bundle) handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, target string, changed chan<- struct{}) {
	defer watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				select {
				case changed <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			b.opts.log.Warn("key file watcher error", zap.String("source", b.source), zap.Error(err))
		}
	}
}

func (b *Bundle) debounceDirty(ctx context.Context, changed <-chan struct{}) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-changed:
			if timer != nil {
				timer.Reset(watchDebounce)
			} else {
				timer = time.NewTimer(watchDebounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			b.dirty.Store(true)
			b.opts.log.Debug("key file changed", zap.String("source", b.source))
		}
	}
}
