// Package dir implements a remote account backed by a directory, such as a
// network share or a removable disk.
//
// Node IDs are slash-separated paths relative to the directory, so the root
// is "/". A `.trash` folder in the directory is reported as the account's
// trash.
package dir

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

const (
	rootID = "/"

	// TrashName is the name of the trash folder.
	TrashName = ".trash"
)

var trashID = path.Join(rootID, TrashName)

// Client is a remote account stored in a directory.
type Client struct {
	fs   afero.Fs
	root string
}

// New returns a client for the account rooted at `root`.
func New(fs afero.Fs, root string) *Client {
	return &Client{fs: fs, root: filepath.Clean(root)}
}

// Login checks that the directory exists. Directory accounts don't
// authenticate, so the credentials are ignored.
func (c *Client) Login(_ context.Context, _ remote.Credentials) error {
	fi, err := c.fs.Stat(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFriendlyError("Remote directory %q does not exist. "+
				"Is it mounted?", c.root)
		}
		return errors.WithContext(err, "stat root")
	}

	if !fi.IsDir() {
		return errors.NewFriendlyError("Remote %q is not a directory", c.root)
	}

	if err := c.fs.MkdirAll(c.localPath(trashID), 0755); err != nil {
		return errors.WithContext(err, "create trash")
	}
	return nil
}

// ListNodes walks the directory.
func (c *Client) ListNodes(ctx context.Context) ([]remote.Node, error) {
	nodes := []remote.Node{{ID: rootID, Kind: remote.Root}}
	err := afero.Walk(c.fs, c.root, func(localPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if localPath == c.root {
			return nil
		}

		id, err := c.toID(localPath)
		if err != nil {
			return err
		}

		node := remote.Node{
			ID:       id,
			ParentID: path.Dir(id),
			Name:     fi.Name(),
		}

		switch {
		case id == trashID && fi.IsDir():
			node.Kind = remote.Trash
		case fi.IsDir():
			node.Kind = remote.Folder
		case fi.Mode().IsRegular():
			node.Kind = remote.File
			node.Size = fi.Size()
		default:
			log.WithField("path", localPath).Debug("Skipping irregular remote file")
			return nil
		}

		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, errors.WithContext(err, "walk")
	}
	return nodes, nil
}

// Upload writes the file into the parent folder. The new file's modification
// time is the time of the upload.
func (c *Client) Upload(ctx context.Context, r io.Reader, name string, parent remote.Node,
	size int64, progress remote.ProgressFunc) (remote.Node, error) {
	id, err := childID(parent, name)
	if err != nil {
		return remote.Node{}, err
	}

	if err := ctx.Err(); err != nil {
		return remote.Node{}, err
	}

	f, err := c.fs.Create(c.localPath(id))
	if err != nil {
		return remote.Node{}, errors.WithContext(err, "create")
	}

	n, err := io.Copy(f, remote.NewProgressReader(r, size, progress))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n != size {
		err = errors.New("wrote %d bytes, expected %d", n, size)
	}

	if err != nil {
		// Don't leave a partial file behind. It would look like a complete
		// upload in the next listing.
		if removeErr := c.fs.Remove(c.localPath(id)); removeErr != nil {
			log.WithError(removeErr).WithField("id", id).Warn("Failed to remove partial upload")
		}
		return remote.Node{}, errors.WithContext(err, "write")
	}

	return remote.Node{
		ID:       id,
		ParentID: parent.ID,
		Name:     name,
		Kind:     remote.File,
		Size:     n,
	}, nil
}

// CreateFolder creates a directory in the parent folder.
func (c *Client) CreateFolder(_ context.Context, name string, parent remote.Node) (remote.Node, error) {
	id, err := childID(parent, name)
	if err != nil {
		return remote.Node{}, err
	}

	if err := c.fs.Mkdir(c.localPath(id), 0755); err != nil {
		return remote.Node{}, errors.WithContext(err, "mkdir")
	}

	return remote.Node{
		ID:       id,
		ParentID: parent.ID,
		Name:     name,
		Kind:     remote.Folder,
	}, nil
}

// Delete removes the node, or moves it into the trash.
func (c *Client) Delete(_ context.Context, node remote.Node, permanent bool) error {
	if node.Kind == remote.Root || node.Kind.IsSystem() || node.ID == rootID {
		return errors.New("cannot delete %s node %q", node.Kind, node.ID)
	}

	localPath := c.localPath(node.ID)
	if _, err := c.fs.Stat(localPath); err != nil {
		return errors.WithContext(err, "stat")
	}

	if permanent {
		return c.fs.RemoveAll(localPath)
	}

	trashPath := c.localPath(path.Join(trashID, node.Name))
	if err := c.fs.RemoveAll(trashPath); err != nil {
		return errors.WithContext(err, "remove previous trash entry")
	}

	if err := c.fs.Rename(localPath, trashPath); err != nil {
		return errors.WithContext(err, "move to trash")
	}
	return nil
}

func childID(parent remote.Node, name string) (string, error) {
	if parent.Kind != remote.Root && parent.Kind != remote.Folder {
		return "", errors.New("cannot create %q in %s node %q", name, parent.Kind, parent.ID)
	}

	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", errors.New("invalid name %q", name)
	}
	return path.Join(parent.ID, name), nil
}

func (c *Client) localPath(id string) string {
	return filepath.Join(c.root, filepath.FromSlash(id))
}

func (c *Client) toID(localPath string) (string, error) {
	rel, err := filepath.Rel(c.root, localPath)
	if err != nil {
		return "", err
	}
	return path.Join(rootID, filepath.ToSlash(rel)), nil
}
