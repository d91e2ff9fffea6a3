package cli

import (
	"github.com/spf13/cobra"

	"opengoat/internal/config"
)

// Build metadata, injected at link time.
var (
	Version   = config.Version
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is the version payload for --json output.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := getCLIContext(cmd)
			info := BuildInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
			if cc.Flags.JSON {
				return printJSON(info)
			}
			printf("opengoat %s (commit %s, built %s)\n", info.Version, info.GitCommit, info.BuildTime)
			return nil
		},
	}
}
