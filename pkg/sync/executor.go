package sync

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

// ConfirmFunc is asked before each deletion. Returning false skips the
// deletion.
type ConfirmFunc func(cmd Command) bool

// State is the execution state of a command.
type State int

const (
	// Pending commands haven't been started.
	Pending State = iota
	// Succeeded commands were applied to the remote account. This includes
	// deletions of items that were already removed with their folder.
	Succeeded
	// Skipped commands were denied by the ConfirmFunc, or would have
	// replaced an item whose deletion was denied.
	Skipped
	// Failed commands exhausted their retries, or failed with an error that
	// can't be retried.
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single command.
type Result struct {
	Command  Command
	State    State
	Attempts int
	Err      error
}

// Report is the outcome of a batch of commands.
type Report struct {
	Results []Result

	// Aborted is true if a command failed, or the context was cancelled,
	// before every command ran. The commands that ran before stay applied.
	Aborted bool
}

// Count returns the number of commands in the given state.
func (r Report) Count(state State) int {
	var count int
	for _, res := range r.Results {
		if res.State == state {
			count++
		}
	}
	return count
}

// Executor applies commands to a remote account.
type Executor struct {
	Client remote.Client

	// Fs is used to read the files to upload. Defaults to the OS filesystem.
	Fs afero.Fs

	Retry RetryPolicy

	// Confirm is optional. If it's nil, all deletions are allowed.
	Confirm ConfirmFunc

	// Progress is optional. It receives the progress of each upload.
	Progress remote.ProgressFunc

	Log logrus.FieldLogger
}

// Execute runs `commands` one at a time, in order, keeping `index` up to date
// with the changes. It stops at the first command that fails, and returns its
// error. Cancelling `ctx` prevents further commands from starting, but
// doesn't interrupt the running one.
func (e Executor) Execute(ctx context.Context, commands []Command, index *Index) (Report, error) {
	report := Report{Results: make([]Result, len(commands))}
	for i, cmd := range commands {
		report.Results[i] = Result{Command: cmd, State: Pending}
	}

	denied := map[string]bool{}
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			return report, err
		}

		res := &report.Results[i]
		cmdLog := e.logger().WithField("command", cmd.String())
		cmdLog.Debug("Executing command")

		if cmd.Kind.IsDelete() {
			if _, ok := deleteTarget(cmd, index); !ok {
				cmdLog.Debug("Already deleted along with its folder")
				res.State = Succeeded
				continue
			}

			if e.Confirm != nil && !e.Confirm(cmd) {
				cmdLog.Info("Deletion denied, skipping")
				res.State = Skipped
				denied[cmd.Path] = true
				continue
			}
		} else if denied[cmd.TargetPath()] {
			// Creating the item would leave a second copy next to the one
			// that wasn't deleted.
			cmdLog.Info("Deletion of the existing item was denied, skipping")
			res.State = Skipped
			continue
		}

		policy := e.Retry
		onRetry := policy.OnRetry
		policy.OnRetry = func(err error, retry int) {
			cmdLog.WithError(err).WithFields(logrus.Fields{
				"errorType": fmt.Sprintf("%T", errors.RootCause(err)),
				"attempt":   retry,
			}).Warn("Command failed, retrying")
			if onRetry != nil {
				onRetry(err, retry)
			}
		}

		err := policy.Do(ctx, func() error {
			res.Attempts++
			return e.execute(ctx, cmd, index)
		})
		if err != nil {
			res.State = Failed
			res.Err = err
			report.Aborted = true
			return report, errors.WithContext(err, cmd.String())
		}
		res.State = Succeeded
	}
	return report, nil
}

func (e Executor) execute(ctx context.Context, cmd Command, index *Index) error {
	switch cmd.Kind {
	case DeleteFile, DeleteFolder:
		return e.delete(ctx, cmd, index)
	case CreateFolder:
		return e.createFolder(ctx, cmd, index)
	case UploadFile:
		return e.upload(ctx, cmd, index)
	default:
		return errors.New("unknown command kind %d", cmd.Kind)
	}
}

func (e Executor) delete(ctx context.Context, cmd Command, index *Index) error {
	node, ok := deleteTarget(cmd, index)
	if !ok {
		return nil
	}

	if err := e.Client.Delete(ctx, node, true); err != nil {
		return errors.WithContext(err, "delete")
	}

	index.Remove(node.ID)
	return nil
}

// deleteTarget returns the node that `cmd` deletes. It returns false if the
// node is no longer indexed.
func deleteTarget(cmd Command, index *Index) (remote.Node, bool) {
	if cmd.Node.ID != "" {
		item, ok := index.Get(cmd.Node.ID)
		return item.Node, ok
	}

	node, err := index.Lookup(cmd.Path)
	return node, err == nil
}

func (e Executor) createFolder(ctx context.Context, cmd Command, index *Index) error {
	parent, err := index.Lookup(cmd.ParentPath)
	if err != nil {
		return errors.WithContext(err, "lookup parent")
	}

	node, err := e.Client.CreateFolder(ctx, EncodeFolderName(cmd.Name), parent)
	if err != nil {
		return errors.WithContext(err, "create")
	}

	if _, err := index.Add(node); err != nil {
		return errors.WithContext(err, "index created folder")
	}
	return nil
}

func (e Executor) upload(ctx context.Context, cmd Command, index *Index) error {
	f, err := e.filesystem().Open(cmd.SourcePath)
	if err != nil {
		return errors.WithContext(err, "open")
	}
	defer f.Close()

	parent, err := index.Lookup(cmd.ParentPath)
	if err != nil {
		return errors.WithContext(err, "lookup parent")
	}

	name := EncodeName(cmd.Name, cmd.ModTime)
	node, err := e.Client.Upload(ctx, f, name, parent, cmd.Size, e.Progress)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("upload %q", name))
	}

	if _, err := index.Add(node); err != nil {
		return errors.WithContext(err, "index uploaded file")
	}
	return nil
}

func (e Executor) filesystem() afero.Fs {
	if e.Fs == nil {
		return fs
	}
	return e.Fs
}

func (e Executor) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}
