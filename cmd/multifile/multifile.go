package multifile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	rget "github.com/replicate/rget/pkg"
	"github.com/replicate/rget/pkg/cli"
	"github.com/replicate/rget/pkg/config"
	"github.com/replicate/rget/pkg/download"
	"github.com/replicate/rget/pkg/logging"
	"github.com/replicate/rget/pkg/optname"
	"github.com/replicate/rget/pkg/output"
)

const longDesc = `
'multifile' mode for rget takes a manifest file as input (can use '-' for stdin) and downloads every entry listed in
the manifest.

The manifest is expected to be in the format of a newline-separated list of pairs of URLs and destination paths,
separated by a space.
e.g.
https://example.com/file1.txt /tmp/file1.txt

Manifests ending in .yaml or .yml are read as a list of entries with 'url', 'dest' and an optional 'mode'
(sequential or parallel) that overrides --parallel for that entry.

Every entry downloads the same prefix (--chunk-count chunks of --chunk-size bytes). Entries are downloaded
concurrently, limited by '--max-concurrent-files'.
`

const multifileExamples = `
  rget multifile manifest.txt

  rget multifile --parallel manifest.yaml

  rget multifile - < manifest.txt

  cat manifest.txt | rget multifile -
`

const defaultMaxConcurrentFiles = 40

// executor runs a single download.
type executor interface {
	Execute(ctx context.Context, req rget.Request) (rget.Result, error)
}

var _ executor = &rget.Getter{}

type multifileDownloadMetric struct {
	elapsedTime time.Duration
	fileSize    int64
}

type downloadMetrics struct {
	metrics []multifileDownloadMetric
	mut     sync.Mutex
}

func GetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "multifile [flags] <manifest-file>",
		Short:   "download files from a manifest file in parallel",
		Long:    longDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: multifilePreRunE,
		RunE:    runMultifileCMD,
		Example: multifileExamples,
	}

	cmd.PersistentFlags().Int(optname.MaxConcurrentFiles, defaultMaxConcurrentFiles, "Maximum number of files to download concurrently")
	err := viper.BindPFlags(cmd.PersistentFlags())
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cmd.SetUsageTemplate(cli.UsageTemplate)
	return cmd
}

func multifilePreRunE(cmd *cobra.Command, args []string) error {
	if viper.GetString(optname.Output) == output.KindStdout {
		return fmt.Errorf("cannot use --output %s with multifile mode", output.KindStdout)
	}
	return nil
}

func runMultifileCMD(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	manifestPath := args[0]
	file, err := manifestFile(manifestPath)
	if err != nil {
		return err
	}
	defer file.Close()

	entries, err := parseManifest(file, isYAMLManifest(manifestPath))
	if err != nil {
		return fmt.Errorf("error processing manifest file %s: %w", manifestPath, err)
	}
	if err := entries.validate(viper.GetString(optname.Output) != output.KindNull); err != nil {
		return fmt.Errorf("error processing manifest file %s: %w", manifestPath, err)
	}
	requests, err := buildRequests(entries)
	if err != nil {
		return fmt.Errorf("error processing manifest file %s: %w", manifestPath, err)
	}

	getter, err := config.NewGetter()
	if err != nil {
		return err
	}
	return multifileExecute(cmd.Context(), getter, requests, viper.GetInt(optname.MaxConcurrentFiles))
}

// buildRequests turns every entry into a validated request before anything
// is downloaded, so a bad entry fails the run up front.
func buildRequests(entries manifest) ([]rget.Request, error) {
	requests := make([]rget.Request, 0, len(entries))
	for _, entry := range entries {
		var mode download.Mode
		if entry.Mode != "" {
			parsed, err := download.ParseMode(entry.Mode)
			if err != nil {
				return nil, err
			}
			mode = parsed
		}
		req, err := config.NewRequest(entry.URL, entry.Dest, mode)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %s %s: %w", entry.URL, entry.Dest, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func initializeErrGroup(concurrentFileLimit int) *errgroup.Group {
	var eg errgroup.Group

	// If `--max-concurrent-files` is set, limit the number of concurrent files
	if concurrentFileLimit > 0 {
		logger := logging.GetLogger()
		logger.Debug().Int("concurrent_file_limit", concurrentFileLimit).Msg("Config")
		eg.SetLimit(concurrentFileLimit)
	}
	return &eg
}

func multifileExecute(ctx context.Context, getter executor, requests []rget.Request, concurrentFileLimit int) error {
	logger := logging.GetLogger()
	metrics := &downloadMetrics{
		metrics: make([]multifileDownloadMetric, 0, len(requests)),
	}

	eg := initializeErrGroup(concurrentFileLimit)
	multifileDownloadStart := time.Now()

	for _, req := range requests {
		logger.Debug().Str("download_id", req.ID).Str("url", req.URL).Str("dest", req.Dest).Msg("Queueing Download")
		eg.Go(func() error {
			return downloadAndMeasure(ctx, getter, req, metrics)
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("error downloading files: %w", err)
	}

	aggregateAndPrintMetrics(time.Since(multifileDownloadStart), metrics)
	return nil
}

func downloadAndMeasure(ctx context.Context, getter executor, req rget.Request, metrics *downloadMetrics) error {
	result, err := getter.Execute(ctx, req)
	if err != nil {
		return err
	}
	metrics.add(result.Elapsed, result.Size)
	return nil
}

func (m *downloadMetrics) add(elapsedTime time.Duration, fileSize int64) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.metrics = append(m.metrics, multifileDownloadMetric{
		elapsedTime: elapsedTime,
		fileSize:    fileSize,
	})
}

func aggregateAndPrintMetrics(elapsedTime time.Duration, metrics *downloadMetrics) {
	var totalFileSize int64

	metrics.mut.Lock()
	defer metrics.mut.Unlock()

	for _, metric := range metrics.metrics {
		totalFileSize += metric.fileSize
	}
	throughput := "n/a"
	if elapsedTime > 0 {
		throughput = fmt.Sprintf("%s/s", humanize.Bytes(uint64(float64(totalFileSize)/elapsedTime.Seconds())))
	}
	logger := logging.GetLogger()
	logger.Info().
		Int("file_count", len(metrics.metrics)).
		Str("total_bytes_downloaded", humanize.Bytes(uint64(totalFileSize))).
		Str("throughput", throughput).
		Str("elapsed_time", fmt.Sprintf("%.3fs", elapsedTime.Seconds())).
		Msg("Metrics")
}
