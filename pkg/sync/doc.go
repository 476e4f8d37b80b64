/*
The sync package implements the mirror's reconciliation algorithm. It makes a
remote account contain exactly the files and folders of a local directory.

Both sides are first flattened into lists of Items, addressed by mirror paths
such as `\photos\2016\beach.jpeg`:
 1. GenerateLocal walks the local directory. Parents are always listed before
    their children.
 2. GenerateRemote resolves the parent links of the remote nodes into paths,
    ignoring the trash and inbox.

Remote accounts can't store a file's modification time, so it's encoded into
the remote file name instead (see EncodeName). GenerateRemote decodes it, so
that local and remote items can be compared directly.

The Generator then diffs the two lists with Equal. Remote items without an
equal local item are deleted, and local items without an equal remote item
are created. Changed files are deleted and uploaded again; there are no
in-place updates.

Finally, the Executor applies the commands one at a time, retrying failures,
and keeps an Index of the remote account up to date so that uploads can find
the folders created by earlier commands.
*/
package sync
