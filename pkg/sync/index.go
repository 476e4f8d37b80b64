package sync

import (
	"sort"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

// Index tracks the items in the remote account by path and by node ID. It's
// kept up to date as commands are executed, so that later commands can find
// the folders created by earlier ones.
//
// Several remote nodes may decode to the same path, for example two uploads
// of the same file with different modification times. They're all indexed.
//
// Index isn't safe for concurrent use. Commands are executed sequentially.
type Index struct {
	byPath map[string][]Item
	byID   map[string]Item
}

// NewIndex returns an Index of `items`, which must have been listed from the
// remote account.
func NewIndex(items []Item) *Index {
	index := &Index{
		byPath: map[string][]Item{},
		byID:   map[string]Item{},
	}
	for _, item := range items {
		index.put(item)
	}
	return index
}

// Lookup returns the remote handle of the item at `path`. If several nodes
// have the path, the most recently indexed one is returned.
func (index *Index) Lookup(path string) (remote.Node, error) {
	items := index.byPath[path]
	if len(items) == 0 {
		return remote.Node{}, errors.PathNotFound{Path: path}
	}
	return items[len(items)-1].Node, nil
}

// Get returns the item of the node with the given ID.
func (index *Index) Get(id string) (Item, bool) {
	item, ok := index.byID[id]
	return item, ok
}

// Add indexes a node that was just created in the remote account, and
// returns its item. The node's parent must already be indexed.
func (index *Index) Add(node remote.Node) (Item, error) {
	parent, ok := index.byID[node.ParentID]
	if !ok {
		return Item{}, errors.PathNotFound{ID: node.ParentID}
	}

	item, err := itemFromNode(node, parent.Path)
	if err != nil {
		return Item{}, err
	}

	index.put(item)
	return item, nil
}

// Remove removes the node with the given ID and, if it's a folder, all of
// its contents. Other nodes at the same path stay indexed.
func (index *Index) Remove(id string) {
	item, ok := index.byID[id]
	if !ok {
		return
	}
	index.remove(item)

	if item.Kind != Folder {
		return
	}

	for childID, child := range index.byID {
		if child.Node.ParentID == id {
			index.Remove(childID)
		}
	}
}

// RemoveByPath removes every node at `path` and, for folders, all of their
// contents. Removing a path that isn't indexed is a no-op.
func (index *Index) RemoveByPath(path string) {
	for _, item := range append([]Item(nil), index.byPath[path]...) {
		index.Remove(item.Node.ID)
	}

	for childPath, children := range index.byPath {
		if !isDescendant(childPath, path) {
			continue
		}
		for _, child := range children {
			index.remove(child)
		}
	}
}

// Items returns the indexed items, sorted by path.
func (index *Index) Items() []Item {
	items := make([]Item, 0, len(index.byID))
	for _, item := range index.byID {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Path != items[j].Path {
			return items[i].Path < items[j].Path
		}
		return items[i].Node.ID < items[j].Node.ID
	})
	return items
}

func (index *Index) put(item Item) {
	// A node that's indexed again may have moved.
	if old, ok := index.byID[item.Node.ID]; ok {
		index.remove(old)
	}

	index.byPath[item.Path] = append(index.byPath[item.Path], item)
	index.byID[item.Node.ID] = item
}

func (index *Index) remove(item Item) {
	delete(index.byID, item.Node.ID)

	var kept []Item
	for _, other := range index.byPath[item.Path] {
		if other.Node.ID != item.Node.ID {
			kept = append(kept, other)
		}
	}

	if len(kept) == 0 {
		delete(index.byPath, item.Path)
	} else {
		index.byPath[item.Path] = kept
	}
}
