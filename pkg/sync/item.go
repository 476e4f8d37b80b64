package sync

import (
	"strings"
	"time"

	"github.com/sidkik/remote-mirror/pkg/remote"
)

const (
	// Separator separates the components of a mirror path.
	Separator = `\`

	// RootPath is the mirror path of the root folder.
	RootPath = Separator
)

// Kind is the type of an Item.
type Kind int

const (
	// File is a regular file.
	File Kind = iota
	// Folder is a directory. Folders don't track modification times.
	Folder
)

func (k Kind) String() string {
	if k == Folder {
		return "folder"
	}
	return "file"
}

// An Item is a file or folder, either on the user's machine or in the remote
// account, addressed by its mirror path.
//
// Mirror paths are independent of the local OS: they start with `\`,
// components are separated with `\`, and folder paths end with `\`.
type Item struct {
	Kind Kind
	Path string
	Name string
	Size int64

	// ModTime is the modification time of the file, truncated to the second.
	// It's always the zero time for folders.
	ModTime time.Time

	// Node is the remote handle of the item. It's only set for items that
	// were listed from the remote account, and is never used for comparison.
	Node remote.Node
}

// NewFile returns the item for a file at `path`.
func NewFile(path string, size int64, modTime time.Time) Item {
	return Item{
		Kind:    File,
		Path:    path,
		Name:    nameOf(path),
		Size:    size,
		ModTime: truncateTime(modTime),
	}
}

// NewFolder returns the item for a folder at `path`.
func NewFolder(path string) Item {
	if !strings.HasSuffix(path, Separator) {
		path += Separator
	}
	return Item{
		Kind: Folder,
		Path: path,
		Name: nameOf(path),
	}
}

// RootItem returns the item for the root folder.
func RootItem() Item {
	return NewFolder(RootPath)
}

// IsRoot returns whether the item is the root folder.
func (item Item) IsRoot() bool {
	return item.Path == RootPath
}

// ParentPath returns the path of the folder containing `path`. It returns the
// empty string for the root.
func ParentPath(path string) string {
	path = strings.TrimRight(path, Separator)
	if path == "" {
		return ""
	}
	return path[:strings.LastIndex(path, Separator)+1]
}

// JoinPath returns the path of the item named `name` inside the folder at
// `parent`.
func JoinPath(parent, name string, kind Kind) string {
	if !strings.HasSuffix(parent, Separator) {
		parent += Separator
	}
	path := parent + name
	if kind == Folder {
		path += Separator
	}
	return path
}

// nameOf returns the last component of `path`. The root's name is its path.
func nameOf(path string) string {
	trimmed := strings.TrimRight(path, Separator)
	if trimmed == "" {
		return RootPath
	}
	return trimmed[strings.LastIndex(trimmed, Separator)+1:]
}

func truncateTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}
