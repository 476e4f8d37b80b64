package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

var (
	rootNode    = remote.Node{ID: "root", Kind: remote.Root}
	trashNode   = remote.Node{ID: "trash", Kind: remote.Trash}
	inboxNode   = remote.Node{ID: "inbox", Kind: remote.Inbox}
	folder1Node = remote.Node{ID: "folder1", ParentID: "root", Name: "Folder1", Kind: remote.Folder}
	file1Node   = remote.Node{ID: "file1", ParentID: "folder1", Kind: remote.File,
		Name: "File1_[[2016-1-1-0-0-0]].jpeg", Size: 1024}
)

func withNode(item Item, node remote.Node) Item {
	item.Node = node
	return item
}

func TestGenerateRemote(t *testing.T) {
	trashedFile := remote.Node{ID: "trashed", ParentID: "trash", Name: "not encoded", Kind: remote.File}
	trashedFolder := remote.Node{ID: "trashed-folder", ParentID: "trash", Name: "Old", Kind: remote.Folder}
	trashedChild := remote.Node{ID: "trashed-child", ParentID: "trashed-folder", Name: "junk", Kind: remote.File}
	sharedFile := remote.Node{ID: "shared", ParentID: "inbox", Name: "shared.txt", Kind: remote.File}

	items, err := GenerateRemote([]remote.Node{
		trashedChild, rootNode, trashNode, inboxNode, file1Node,
		folder1Node, trashedFile, trashedFolder, sharedFile,
	})
	assert.NoError(t, err)
	assert.Equal(t, []Item{
		withNode(RootItem(), rootNode),
		withNode(NewFile(`\Folder1\File1.jpeg`, 1024, testModTime), file1Node),
		withNode(NewFolder(`\Folder1`), folder1Node),
	}, items)
}

func TestGenerateRemoteEmpty(t *testing.T) {
	items, err := GenerateRemote([]remote.Node{rootNode, trashNode, inboxNode})
	assert.NoError(t, err)
	assert.Equal(t, []Item{withNode(RootItem(), rootNode)}, items)
}

func TestGenerateRemoteErrors(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []remote.Node
		expError error
	}{
		{
			name:     "no root",
			nodes:    []remote.Node{folder1Node},
			expError: errors.ErrMissingRoot,
		},
		{
			name:     "two roots",
			nodes:    []remote.Node{rootNode, {ID: "root2", Kind: remote.Root}},
			expError: errors.DuplicateSystemNode{Kind: "root", Count: 2},
		},
		{
			name:     "two trashes",
			nodes:    []remote.Node{rootNode, trashNode, {ID: "trash2", Kind: remote.Trash}},
			expError: errors.DuplicateSystemNode{Kind: "trash", Count: 2},
		},
		{
			name: "malformed file name",
			nodes: []remote.Node{rootNode, {ID: "bad", ParentID: "root",
				Name: "bad.jpeg", Kind: remote.File}},
			expError: errors.MalformedRemoteName{Name: "bad.jpeg"},
		},
		{
			name:     "orphaned node",
			nodes:    []remote.Node{rootNode, file1Node},
			expError: errors.PathNotFound{ID: "folder1"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			_, err := GenerateRemote(test.nodes)
			assert.Equal(t, test.expError, errors.RootCause(err))
		})
	}
}

func TestGenerateRemoteFileParent(t *testing.T) {
	child := remote.Node{ID: "child", ParentID: "file1", Name: "child", Kind: remote.Folder}
	_, err := GenerateRemote([]remote.Node{rootNode, folder1Node, file1Node, child})
	assert.EqualError(t, err, `parent of remote node "child" is a file`)
}

func TestGenerateRemoteCycle(t *testing.T) {
	a := remote.Node{ID: "a", ParentID: "b", Name: "a", Kind: remote.Folder}
	b := remote.Node{ID: "b", ParentID: "a", Name: "b", Kind: remote.Folder}
	_, err := GenerateRemote([]remote.Node{rootNode, a, b})
	assert.Error(t, err)
}
