package local

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/gobeaver/diskkit"
)

// Watch implements diskkit.CanWatch using fsnotify. pattern is a glob
// relative to the root where "*" stays within a directory and "**" crosses
// directories. The returned token fires once, for the first matching event,
// and the watcher is released when it fires or ctx is done.
func (a *Adapter) Watch(ctx context.Context, pattern string) (diskkit.ChangeToken, error) {
	pattern = strings.TrimLeft(filepath.ToSlash(pattern), "/")
	matcher, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, &diskkit.PathError{Op: "watch", Path: pattern, Err: err}
	}

	watchDir, err := a.fullPath("watch", staticPrefix(pattern))
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &diskkit.PathError{Op: "watch", Path: pattern, Err: err}
	}
	// fsnotify is not recursive; every directory below a "**" is added.
	recursive := strings.Contains(pattern, "**")
	if recursive {
		err = addTree(watcher, watchDir)
	} else {
		err = watcher.Add(watchDir)
	}
	if err != nil {
		watcher.Close()
		return nil, &diskkit.PathError{Op: "watch", Path: pattern, Err: mapOSError(err)}
	}

	token := diskkit.NewCallbackChangeToken()

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				rel, err := a.prefixer.StripPrefix(event.Name)
				if err != nil {
					continue
				}
				if matcher.Match(rel) {
					token.SignalChange()
					return
				}
				if recursive && event.Has(fsnotify.Create) {
					// A directory removed right after its creation has no
					// events left to deliver.
					if err := addTree(watcher, event.Name); err != nil {
						continue
					}
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return token, nil
}

// dirAdder registers a path with a watcher.
type dirAdder interface {
	Add(name string) error
}

// addTree adds root and every directory below it to w and returns the first
// failure. Entries that vanish during the walk are skipped. A root that is a
// file is added as is.
func addTree(w dirAdder, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != root {
				return nil
			}
			return err
		}
		if d.IsDir() || p == root {
			return w.Add(p)
		}
		return nil
	})
}

// staticPrefix returns the directory part of pattern before its first glob
// meta character.
func staticPrefix(pattern string) string {
	idx := strings.IndexAny(pattern, "*?[{")
	if idx < 0 {
		return filepath.ToSlash(filepath.Dir(pattern))
	}
	dir := pattern[:idx]
	if slash := strings.LastIndex(dir, "/"); slash >= 0 {
		return dir[:slash]
	}
	return ""
}
