package sync

import (
	"fmt"
	"time"

	units "github.com/docker/go-units"

	"github.com/sidkik/remote-mirror/pkg/remote"
)

// CommandKind is the type of a Command.
type CommandKind int

const (
	// DeleteFile deletes the remote file at Path.
	DeleteFile CommandKind = iota
	// DeleteFolder deletes the remote folder at Path, and everything in it.
	DeleteFolder
	// CreateFolder creates a remote folder named Name in ParentPath.
	CreateFolder
	// UploadFile uploads the local file at SourcePath into ParentPath.
	UploadFile
)

func (k CommandKind) String() string {
	switch k {
	case DeleteFile:
		return "delete file"
	case DeleteFolder:
		return "delete folder"
	case CreateFolder:
		return "create folder"
	case UploadFile:
		return "upload file"
	default:
		return "unknown"
	}
}

// IsDelete returns whether the command removes data from the remote account.
func (k CommandKind) IsDelete() bool {
	return k == DeleteFile || k == DeleteFolder
}

// A Command is a single change to the remote account. Which fields are set
// depends on the Kind.
type Command struct {
	Kind CommandKind

	// Path is the mirror path of the item to delete.
	Path string

	// Node is the remote node to delete. Several nodes can share a Path, so
	// deletions computed from a listing name the exact node. If it's unset,
	// the node indexed at Path is deleted.
	Node remote.Node

	// Name is the name of the folder to create, or the local name of the file
	// to upload.
	Name string

	// ParentPath is the mirror path of the folder to create the item in.
	ParentPath string

	// SourcePath is the local path of the file to upload.
	SourcePath string

	// ModTime and Size describe the file to upload.
	ModTime time.Time
	Size    int64
}

// NewDeleteFile returns a command that deletes the file at `path`.
func NewDeleteFile(path string) Command {
	return Command{Kind: DeleteFile, Path: path}
}

// NewDeleteFolder returns a command that deletes the folder at `path`.
func NewDeleteFolder(path string) Command {
	return Command{Kind: DeleteFolder, Path: path}
}

// NewDelete returns a command that deletes the remote node of `item`.
func NewDelete(item Item) Command {
	cmd := NewDeleteFile(item.Path)
	if item.Kind == Folder {
		cmd = NewDeleteFolder(item.Path)
	}
	cmd.Node = item.Node
	return cmd
}

// NewCreateFolder returns a command that creates the folder `name` in
// `parentPath`.
func NewCreateFolder(name, parentPath string) Command {
	return Command{Kind: CreateFolder, Name: name, ParentPath: parentPath}
}

// NewUploadFile returns a command that uploads the local file at
// `sourcePath` into `parentPath`.
func NewUploadFile(sourcePath, name, parentPath string, modTime time.Time, size int64) Command {
	return Command{
		Kind:       UploadFile,
		SourcePath: sourcePath,
		Name:       name,
		ParentPath: parentPath,
		ModTime:    modTime,
		Size:       size,
	}
}

// TargetPath returns the mirror path of the item the command changes.
func (cmd Command) TargetPath() string {
	switch cmd.Kind {
	case CreateFolder:
		return JoinPath(cmd.ParentPath, cmd.Name, Folder)
	case UploadFile:
		return JoinPath(cmd.ParentPath, cmd.Name, File)
	default:
		return cmd.Path
	}
}

func (cmd Command) String() string {
	switch cmd.Kind {
	case CreateFolder:
		return fmt.Sprintf("%s %s in %s", cmd.Kind, cmd.Name, cmd.ParentPath)
	case UploadFile:
		return fmt.Sprintf("%s %s (%s) to %s", cmd.Kind, cmd.SourcePath,
			units.BytesSize(float64(cmd.Size)), cmd.ParentPath)
	default:
		return fmt.Sprintf("%s %s", cmd.Kind, cmd.Path)
	}
}

// Summary counts the commands of each kind in a batch.
type Summary struct {
	Counts      map[CommandKind]int
	UploadBytes int64
}

// Summarize returns the Summary of `commands`.
func Summarize(commands []Command) Summary {
	summary := Summary{Counts: map[CommandKind]int{}}
	for _, cmd := range commands {
		summary.Counts[cmd.Kind]++
		if cmd.Kind == UploadFile {
			summary.UploadBytes += cmd.Size
		}
	}
	return summary
}

func (s Summary) String() string {
	return fmt.Sprintf("%d files to upload (%s), %d folders to create, "+
		"%d files and %d folders to delete",
		s.Counts[UploadFile], units.BytesSize(float64(s.UploadBytes)),
		s.Counts[CreateFolder], s.Counts[DeleteFile], s.Counts[DeleteFolder])
}
