package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/errors"
)

// GenerateLocal returns the items under the directory at `basePath`.
//
// The root comes first. Then, for each directory, its files are listed
// before its subdirectories are expanded, so that a folder always precedes
// its contents. Items matching `excludes` are skipped.
func GenerateLocal(fs afero.Fs, basePath string, excludes []string) ([]Item, error) {
	base := filepath.Clean(basePath)
	fi, err := fs.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: basePath}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.NewFriendlyError("%q is not a directory", basePath)
	}

	items := []Item{RootItem()}
	if err := generateLocalDir(fs, base, base, excludes, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func generateLocalDir(fs afero.Fs, base, dir string, excludes []string, items *[]Item) error {
	// ReadDir sorts entries by name, so the listing is deterministic.
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("read dir %q", dir))
	}

	var subdirs []string
	for _, entry := range entries {
		absPath := filepath.Join(dir, entry.Name())
		if entry.Mode()&os.ModeSymlink != 0 {
			log.WithField("path", absPath).Debug("Skipping symlink")
			continue
		}

		if strings.Contains(entry.Name(), Separator) {
			log.WithField("path", absPath).Warnf(
				"Skipping file with %q in its name", Separator)
			continue
		}

		if entry.IsDir() {
			subdirs = append(subdirs, absPath)
			continue
		}

		if !entry.Mode().IsRegular() {
			log.WithField("path", absPath).Debug("Skipping irregular file")
			continue
		}

		mirrorPath, err := toMirrorPath(base, absPath)
		if err != nil {
			return err
		}

		if Excluded(excludes, mirrorPath) {
			continue
		}
		*items = append(*items, NewFile(mirrorPath, entry.Size(), entry.ModTime()))
	}

	for _, subdir := range subdirs {
		mirrorPath, err := toMirrorPath(base, subdir)
		if err != nil {
			return err
		}

		if Excluded(excludes, mirrorPath+Separator) {
			continue
		}

		*items = append(*items, NewFolder(mirrorPath))
		if err := generateLocalDir(fs, base, subdir, excludes, items); err != nil {
			return err
		}
	}
	return nil
}

// toMirrorPath converts the absolute local path `absPath` into a mirror path
// relative to `base`.
func toMirrorPath(base, absPath string) (string, error) {
	if absPath == base {
		return RootPath, nil
	}

	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}

	if !strings.HasPrefix(absPath, prefix) {
		return "", errors.NotAChildOfBase{Path: absPath, Base: base}
	}

	relativePath := filepath.ToSlash(strings.TrimPrefix(absPath, prefix))
	return RootPath + strings.ReplaceAll(relativePath, "/", Separator), nil
}

// toLocalPath is the inverse of toMirrorPath.
func toLocalPath(base, mirrorPath string) string {
	relativePath := strings.ReplaceAll(strings.TrimLeft(mirrorPath, Separator), Separator, "/")
	return strings.TrimRight(base, string(filepath.Separator)) +
		string(filepath.Separator) + filepath.FromSlash(relativePath)
}
