package errors

import (
	"fmt"
)

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// MalformedRemoteName is returned when a remote file's name doesn't carry an
// encoded modification time. This means the remote account contains files
// that weren't uploaded by the mirror.
type MalformedRemoteName struct {
	Name string
}

func (err MalformedRemoteName) Error() string {
	return fmt.Sprintf("remote name %q does not contain a modification time", err.Name)
}

// PathNotFound is returned when a mirror path, or the ID of a remote node,
// isn't known to the remote index.
type PathNotFound struct {
	Path string
	ID   string
}

func (err PathNotFound) Error() string {
	if err.Path == "" && err.ID != "" {
		return fmt.Sprintf("remote node %q not found in remote index", err.ID)
	}
	return fmt.Sprintf("path %q not found in remote index", err.Path)
}

// NotAChildOfBase is returned when a local file lies outside of the directory
// being mirrored.
type NotAChildOfBase struct {
	Path, Base string
}

func (err NotAChildOfBase) Error() string {
	return fmt.Sprintf("%q is not inside %q", err.Path, err.Base)
}

// DuplicateSystemNode is returned when the remote account reports more than
// one node of a kind that must be unique (root, trash, inbox).
type DuplicateSystemNode struct {
	Kind  string
	Count int
}

func (err DuplicateSystemNode) Error() string {
	return fmt.Sprintf("found %d %s nodes, expected at most one", err.Count, err.Kind)
}

// ErrMissingRoot is returned when the remote account doesn't report a root node.
var ErrMissingRoot = New("remote account has no root node")
