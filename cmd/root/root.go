package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/replicate/rget/pkg/cli"
	"github.com/replicate/rget/pkg/config"
	"github.com/replicate/rget/pkg/logging"
	"github.com/replicate/rget/pkg/optname"
)

const rootLongDesc = `
rget

rget downloads the leading bytes of a remote file over HTTP using Range requests. The prefix is split into
fixed-size chunks (4 chunks of 1MiB by default) that are fetched either one after the other or all at once.

In sequential mode every chunk is appended to the destination as soon as it arrives and the download stops at the
first failed chunk. In parallel mode (--parallel) every chunk is fetched concurrently and written at its own offset,
so the result is byte-identical to a sequential download regardless of the order in which chunks complete. A
parallel download that does not finish within --timeout fails, and chunks still in flight never touch the
destination afterwards.

The destination is created or truncated. A failed download leaves whatever was written in place.
`

func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rget [flags] <url> [dest]",
		Short: "rget",
		Long:  rootLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.PersistentStartupProcessFlags()
		},
		RunE: runRootCMD,
		Args: cobra.RangeArgs(1, 2),
		Example: `  rget https://example.com/model.bin
  rget --parallel https://example.com/model.bin model.head
  rget -p -s 4MiB --timeout 1m https://example.com/model.bin model.head`,
	}
	cmd.SetUsageTemplate(cli.UsageTemplate)
	err := config.AddRootPersistentFlags(cmd)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	return cmd
}

func runRootCMD(cmd *cobra.Command, args []string) error {
	// After we run through the PreRun functions we want to silence usage from being printed
	// on all errors
	cmd.SilenceUsage = true

	urlString := args[0]
	dest := ""
	if len(args) > 1 {
		dest = args[1]
	}

	req, err := config.NewRequest(urlString, dest, "")
	if err != nil {
		return err
	}
	logger := logging.GetLogger()
	logger.Info().
		Str("download_id", req.ID).
		Str("url", req.URL).
		Str("dest", req.Dest).
		Str("mode", string(req.Mode)).
		Str("chunk_size", viper.GetString(optname.ChunkSize)).
		Int("chunk_count", req.ChunkCount).
		Msg("Initiating")

	getter, err := config.NewGetter()
	if err != nil {
		return err
	}
	_, err = getter.Execute(cmd.Context(), req)
	return err
}
