package fswatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/kelda-inc/fsnotify"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/sync"
)

var fs = afero.NewOsFs()

// Watch watches the directory tree at `root`, skipping the directories
// excluded by `excludes`. It sends an event on the returned channel whenever
// something in the tree changes. Bursts of changes are coalesced into a single
// event. The watch stops when `ctx` is cancelled.
func Watch(ctx context.Context, root string, excludes []string) (chan struct{}, error) {
	pathsToWatch, err := getPathsToWatch(root, excludes)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		<-ctx.Done()
		if err := watcher.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file watcher")
		}
	}()

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Debug("File watcher error")
		}
	}()

	// fsnotify doesn't watch directories recursively, so new directories
	// have to be added as they're created.
	watchNewDir := func(path string) {
		if !shouldWatch(root, path, excludes) {
			return
		}

		if err := watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
		}
	}
	return combineUpdates(watcher.Events, watchNewDir), nil
}

func combineUpdates(updates <-chan fsnotify.Event, onCreate func(path string)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for event := range updates {
			if event.Op&fsnotify.Create != 0 && onCreate != nil {
				onCreate(event.Name)
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns `root` and all of the directories inside it. Files
// don't need to be watched individually, since changes to a file are
// reported on its directory.
func getPathsToWatch(root string, excludes []string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.NewFriendlyError("%q is not a directory", root)
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}

		if !fi.IsDir() {
			return nil
		}

		if path != root && isExcluded(root, path, excludes) {
			return filepath.SkipDir
		}

		paths = append(paths, path)
		return nil
	})
	return paths, err
}

// shouldWatch returns whether `path` is a directory that's mirrored.
func shouldWatch(root, path string, excludes []string) bool {
	fi, err := fs.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	return !isExcluded(root, path, excludes)
}

func isExcluded(root, dir string, excludes []string) bool {
	relativePath, err := filepath.Rel(root, dir)
	if err != nil || strings.HasPrefix(relativePath, "..") {
		return true
	}

	mirrorPath := sync.JoinPath(sync.RootPath,
		strings.ReplaceAll(filepath.ToSlash(relativePath), "/", sync.Separator), sync.Folder)
	return sync.Excluded(excludes, mirrorPath)
}
