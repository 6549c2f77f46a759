package cmd

import (
	"github.com/spf13/cobra"

	"github.com/replicate/rget/cmd/multifile"
	"github.com/replicate/rget/cmd/root"
	"github.com/replicate/rget/cmd/version"
)

func GetRootCommand() *cobra.Command {
	rootCMD := root.GetCommand()
	rootCMD.AddCommand(multifile.GetCommand())
	rootCMD.AddCommand(version.VersionCMD)
	return rootCMD
}
