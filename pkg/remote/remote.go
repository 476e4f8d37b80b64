// Package remote defines the storage accounts that local directories are
// mirrored onto.
//
// A remote account is a graph of nodes linked by parent IDs. The mirror only
// relies on each node's ID, parent, display name, kind and size: remote
// accounts aren't expected to store any custom metadata.
package remote

//go:generate mockery -name Client

import (
	"context"
	"io"
)

// Kind is the type of a remote node.
type Kind int

const (
	// Root is the top-level folder of the account.
	Root Kind = iota
	// Folder is a regular folder.
	Folder
	// File is a regular file.
	File
	// Trash holds deleted nodes. It and its contents are never mirrored.
	Trash
	// Inbox holds nodes shared with the account. It and its contents are
	// never mirrored.
	Inbox
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Folder:
		return "folder"
	case File:
		return "file"
	case Trash:
		return "trash"
	case Inbox:
		return "inbox"
	default:
		return "unknown"
	}
}

// IsSystem returns whether nodes of this kind are managed by the remote
// account itself rather than by the user.
func (k Kind) IsSystem() bool {
	return k == Trash || k == Inbox
}

// Node is the handle to an item in the remote account.
type Node struct {
	ID       string
	ParentID string
	// Name is the display name of the node. For files created by the mirror,
	// it carries the encoded modification time of the local file.
	Name string
	Kind Kind
	Size int64
}

// Credentials are used to log in to a remote account. Their meaning depends
// on the backend.
type Credentials struct {
	Username string
	Password string
}

// ProgressFunc receives the completion percentage (0-100) of a transfer.
type ProgressFunc func(percent float64)

// Client is a connection to a remote account.
type Client interface {
	// Login authenticates against the account.
	Login(ctx context.Context, creds Credentials) error

	// ListNodes returns every node in the account, including system nodes.
	ListNodes(ctx context.Context) ([]Node, error)

	// Upload creates a new file named `name` in `parent` containing the
	// `size` bytes read from `r`.
	Upload(ctx context.Context, r io.Reader, name string, parent Node,
		size int64, progress ProgressFunc) (Node, error)

	// CreateFolder creates a new folder named `name` in `parent`.
	CreateFolder(ctx context.Context, name string, parent Node) (Node, error)

	// Delete removes the node, and all its children if it's a folder. If
	// `permanent` is false, the node is moved to the account's trash.
	Delete(ctx context.Context, node Node, permanent bool) error
}
