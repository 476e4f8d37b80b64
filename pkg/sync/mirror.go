package sync

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/remote-mirror/pkg/errors"
	"github.com/sidkik/remote-mirror/pkg/remote"
)

// A Plan contains the commands that make a remote account mirror a local
// directory, along with the listings they were computed from.
type Plan struct {
	Local    []Item
	Remote   []Item
	Commands []Command

	// Index is the remote index that the Commands must be executed against.
	Index *Index
}

// PlanOptions configures NewPlan.
type PlanOptions struct {
	// LocalRoot is the directory to mirror.
	LocalRoot string

	// Excludes are glob patterns of paths that are neither uploaded nor
	// deleted. See Excluded.
	Excludes []string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// NewPlan lists the local directory and the remote account, and computes
// the commands needed to mirror one onto the other.
func NewPlan(ctx context.Context, client remote.Client, opts PlanOptions) (Plan, error) {
	localFs := opts.Fs
	if localFs == nil {
		localFs = fs
	}

	local, err := GenerateLocal(localFs, opts.LocalRoot, opts.Excludes)
	if err != nil {
		return Plan{}, errors.WithContext(err, "list local files")
	}

	nodes, err := client.ListNodes(ctx)
	if err != nil {
		return Plan{}, errors.WithContext(err, "list remote nodes")
	}

	remoteItems, err := GenerateRemote(nodes)
	if err != nil {
		return Plan{}, errors.WithContext(err, "list remote files")
	}

	local = filterReserved(local, nodes)

	// The index contains excluded items too, since they're still in the
	// remote account.
	index := NewIndex(remoteItems)
	remoteItems = filterExcluded(remoteItems, opts.Excludes)

	generator := Generator{LocalBasePath: opts.LocalRoot}
	return Plan{
		Local:    local,
		Remote:   remoteItems,
		Commands: generator.Generate(local, remoteItems),
		Index:    index,
	}, nil
}

// filterReserved removes the local folders that would be created over a
// system node in the remote root, such as a directory account's trash, along
// with their contents.
func filterReserved(local []Item, nodes []remote.Node) []Item {
	var rootID string
	for _, node := range nodes {
		if node.Kind == remote.Root {
			rootID = node.ID
		}
	}

	reserved := map[string]bool{}
	for _, node := range nodes {
		if node.Kind.IsSystem() && node.ParentID == rootID && node.Name != "" {
			reserved[JoinPath(RootPath, node.Name, Folder)] = true
		}
	}

	if len(reserved) == 0 {
		return local
	}

	var filtered []Item
	for _, item := range local {
		if item.Kind == Folder && reserved[item.Path] {
			log.WithField("path", item.Path).Warn(
				"Not mirroring local folder since its name is reserved by the remote account")
			continue
		}

		if isReserved(item.Path, reserved) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func isReserved(path string, reserved map[string]bool) bool {
	for folderPath := range reserved {
		if isDescendant(path, folderPath) {
			return true
		}
	}
	return false
}
