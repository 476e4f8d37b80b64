package version

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sidkik/remote-mirror/pkg/version"
)

// New creates a new `version` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of mirror.",
		Long:  "Print the version of mirror, as a git tag or commit hash.",
		Run: func(_ *cobra.Command, _ []string) {
			run(os.Stdout)
		},
	}
}

func run(out io.Writer) {
	fmt.Fprintf(out, "mirror version: %s\n", version.Version)
}
