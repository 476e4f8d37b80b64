package sync

import (
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// Excluded returns whether the item at `mirrorPath` is excluded from mirroring
// by any of the glob `patterns`. A pattern without a separator matches any
// component of the path, so `*.tmp` excludes temporary files in every folder,
// and `cache` excludes any folder named cache. A pattern with a separator is
// matched against the path relative to the root, e.g. `photos/raw`.
// Excluding a folder excludes all of its children.
func Excluded(patterns []string, mirrorPath string) bool {
	if len(patterns) == 0 {
		return false
	}

	relativePath := strings.Trim(mirrorPath, Separator)
	if relativePath == "" {
		return false
	}
	components := strings.Split(relativePath, Separator)

	for _, pattern := range patterns {
		pattern = strings.Trim(strings.ReplaceAll(pattern, Separator, "/"), "/")
		if pattern == "" {
			continue
		}

		if !strings.Contains(pattern, "/") {
			for _, component := range components {
				if ok, _ := path.Match(pattern, component); ok {
					return true
				}
			}
			continue
		}

		// Check every ancestor so that excluding a folder also excludes its
		// children.
		for i := range components {
			prefix := strings.Join(components[:i+1], "/")
			if ok, _ := path.Match(pattern, prefix); ok {
				return true
			}
		}
	}
	return false
}

// filterExcluded returns the items that aren't excluded by `patterns`.
func filterExcluded(items []Item, patterns []string) []Item {
	if len(patterns) == 0 {
		return items
	}

	var filtered []Item
	for _, item := range items {
		if !Excluded(patterns, item.Path) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
