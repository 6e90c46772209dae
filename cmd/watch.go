package main

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/richinsley/goshaderchain/logx"
	"github.com/richinsley/goshaderchain/options"
	"github.com/richinsley/goshaderchain/renderer"
)

// fileWatcher reports changes to one file. The parent directory is watched
// so that editors replacing the file by rename are seen too.
type fileWatcher struct {
	w       *fsnotify.Watcher
	name    string
	changed chan struct{}
	done    chan struct{}
}

func watchFile(path string) (*fileWatcher, error) {
	name, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(name)); err != nil {
		w.Close()
		return nil, err
	}
	fw := &fileWatcher{
		w:       w,
		name:    name,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go fw.loop()
	logx.Logger().Info("watching for changes", "file", name)
	return fw, nil
}

func (fw *fileWatcher) loop() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Bursts of events collapse into one pending change.
			select {
			case fw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			logx.Logger().Warn("file watcher error", "file", fw.name, "error", err)
		}
	}
}

// Changed delivers a value after the file changed.
func (fw *fileWatcher) Changed() <-chan struct{} { return fw.changed }

func (fw *fileWatcher) Close() error {
	err := fw.w.Close()
	<-fw.done
	return err
}

// reloadHook rebuilds the scene when the watched file changed. A file that
// fails to parse or compile leaves the current scene running.
func reloadHook(ctx context.Context, fw *fileWatcher, o *options.ShaderOptions) renderer.FrameHook {
	return func(r *renderer.Renderer) error {
		select {
		case <-fw.Changed():
		default:
			return nil
		}
		args, err := loadShader(ctx, o)
		if err != nil {
			logx.Logger().Warn("reload skipped", "file", o.File, "error", err)
			return nil
		}
		if err := r.Load(args); err != nil {
			return nil
		}
		logx.Logger().Info("reloaded shader", "title", args.Title)
		dumpBinaries(r, o.DumpBinary)
		return nil
	}
}
