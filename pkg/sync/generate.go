package sync

import (
	"strings"
)

// Generator computes the commands needed to make a remote account mirror a
// local directory.
type Generator struct {
	// LocalBasePath is the local directory that's being mirrored.
	LocalBasePath string
}

// Generate returns the commands that converge `remoteItems` to `localItems`.
//
// Every remote item without an equal local item is deleted, including the
// contents of deleted folders. All deletions come first, so that a changed
// file is removed before its replacement is uploaded to the same path.
// Creations follow in the order of
// `localItems`, which lists folders before their contents, so each folder is
// created before anything is uploaded into it.
//
// There are no in-place updates: a file whose size or modification time
// changed is deleted and uploaded again.
func (g Generator) Generate(localItems, remoteItems []Item) []Command {
	var commands []Command

	// Deleting a folder also deletes its contents, so the contents' own
	// commands find nothing left to delete when they run.
	for _, item := range Except(remoteItems, localItems) {
		if !item.IsRoot() {
			commands = append(commands, NewDelete(item))
		}
	}

	for _, item := range Except(localItems, remoteItems) {
		if item.IsRoot() {
			continue
		}

		if item.Kind == Folder {
			commands = append(commands, NewCreateFolder(item.Name, ParentFolder(item)))
		} else {
			commands = append(commands, NewUploadFile(toLocalPath(g.LocalBasePath, item.Path),
				item.Name, ParentFolder(item), item.ModTime, item.Size))
		}
	}
	return commands
}

// ParentFolder returns the mirror path of the folder that contains `item`.
func ParentFolder(item Item) string {
	return ParentPath(item.Path)
}

// isDescendant returns whether `path` is strictly inside the folder at
// `folderPath`.
func isDescendant(path, folderPath string) bool {
	return path != folderPath && strings.HasPrefix(path, folderPath)
}
