package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version can be set via ldflags: -ldflags "-X main.version=v1.0.0"
var version = ""

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			line := "codebuild-cfn " + getVersion()
			if rev := getRevision(); rev != "" {
				line += fmt.Sprintf(" (%s)", rev)
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}
}

// getVersion prefers the ldflags value, then the module version recorded
// by "go install @version", and falls back to "dev".
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

// getRevision returns the short VCS revision stamped into the binary, with
// a "+dirty" suffix for modified trees. Test binaries carry none.
func getRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}

	var rev, modified string
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value
		}
	}
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if rev != "" && modified == "true" {
		rev += "+dirty"
	}
	return rev
}
