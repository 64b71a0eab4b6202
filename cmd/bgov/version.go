package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/calehh/phishgov/types"
	cmtversion "github.com/cometbft/cometbft/version"
	"github.com/spf13/cobra"
)

// GitCommit is set at build time:
//
//	go build -ldflags "-X main.GitCommit=$(git rev-parse HEAD)" ./cmd/bgov
var GitCommit string

const Version = "0.1.0"

// buildCommit prefers the linker-provided commit and falls back to the vcs stamp the go tool
// embeds when building from a checkout.
func buildCommit() string {
	if GitCommit != "" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func versionString(commit string) string {
	if len(commit) >= 8 {
		return Version + "-" + commit[:8]
	}
	return Version
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the bgov version",
	Aliases: []string{"V"},
	Long: `Print the bgov release, the commit it was built from and the CometBFT and Go versions
it links. Nodes on one network must run the same application module (` + types.ModuleName + `)
for their app hashes to agree.`,
	Args: cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bgov %s\ncometbft %s\n%s %s/%s\n",
			versionString(buildCommit()), cmtversion.TMCoreSemVer, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
