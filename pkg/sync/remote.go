package sync

import (
	"fmt"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

// GenerateRemote converts the nodes of a remote account into items, in the
// order of `nodes`.
//
// System nodes (the trash and inbox) and everything inside them are dropped.
// File names are decoded with DecodeName, so every file in the account must
// have been uploaded by the mirror.
func GenerateRemote(nodes []remote.Node) ([]Item, error) {
	byID := map[string]remote.Node{}
	children := map[string][]string{}
	var roots, systemNodes []remote.Node
	systemCounts := map[remote.Kind]int{}
	for _, node := range nodes {
		byID[node.ID] = node
		children[node.ParentID] = append(children[node.ParentID], node.ID)

		switch {
		case node.Kind == remote.Root:
			roots = append(roots, node)
		case node.Kind.IsSystem():
			systemNodes = append(systemNodes, node)
			systemCounts[node.Kind]++
		}
	}

	switch {
	case len(roots) == 0:
		return nil, errors.ErrMissingRoot
	case len(roots) > 1:
		return nil, errors.DuplicateSystemNode{Kind: remote.Root.String(), Count: len(roots)}
	}

	for _, kind := range []remote.Kind{remote.Trash, remote.Inbox} {
		if count := systemCounts[kind]; count > 1 {
			return nil, errors.DuplicateSystemNode{Kind: kind.String(), Count: count}
		}
	}

	// Remove the system nodes and their descendants.
	var queue []string
	for _, node := range systemNodes {
		queue = append(queue, node.ID)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := byID[id]; !ok {
			continue
		}
		delete(byID, id)
		queue = append(queue, children[id]...)
	}

	root := roots[0]
	paths := map[string]string{root.ID: RootPath}
	resolving := map[string]bool{}
	var pathOf func(id string) (string, error)
	pathOf = func(id string) (string, error) {
		if path, ok := paths[id]; ok {
			return path, nil
		}

		node, ok := byID[id]
		if !ok {
			return "", errors.PathNotFound{ID: id}
		}

		if resolving[id] {
			return "", errors.New("cycle in remote node %q", id)
		}
		resolving[id] = true

		parentPath, err := pathOf(node.ParentID)
		if err != nil {
			return "", err
		}

		item, err := itemFromNode(node, parentPath)
		if err != nil {
			return "", err
		}
		paths[id] = item.Path
		return item.Path, nil
	}

	var items []Item
	for _, node := range nodes {
		if _, ok := byID[node.ID]; !ok {
			continue
		}

		if node.Kind == remote.Root {
			root := RootItem()
			root.Node = node
			items = append(items, root)
			continue
		}

		parentPath, err := pathOf(node.ParentID)
		if err != nil {
			return nil, errors.WithContext(err, fmt.Sprintf("resolve parent of %q", node.Name))
		}

		item, err := itemFromNode(node, parentPath)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// itemFromNode returns the item for `node`, which is inside the folder at
// `parentPath`.
func itemFromNode(node remote.Node, parentPath string) (Item, error) {
	if parentPath == "" {
		return Item{}, errors.New("remote node %q has no parent", node.Name)
	}

	if parentPath[len(parentPath)-1:] != Separator {
		return Item{}, errors.New("parent of remote node %q is a file", node.Name)
	}

	var item Item
	switch node.Kind {
	case remote.Folder:
		item = NewFolder(JoinPath(parentPath, node.Name, Folder))
	case remote.File:
		name, modTime, err := DecodeName(node.Name)
		if err != nil {
			return Item{}, err
		}
		item = NewFile(JoinPath(parentPath, name, File), node.Size, modTime)
	default:
		return Item{}, errors.New("unexpected %s node %q", node.Kind, node.Name)
	}

	item.Node = node
	return item, nil
}
