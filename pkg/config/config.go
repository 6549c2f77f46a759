package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	rget "github.com/replicate/rget/pkg"
	"github.com/replicate/rget/pkg/client"
	"github.com/replicate/rget/pkg/download"
	"github.com/replicate/rget/pkg/logging"
	"github.com/replicate/rget/pkg/optname"
	"github.com/replicate/rget/pkg/output"
)

const (
	DefaultChunkSize  = "1MiB"
	DefaultChunkCount = 4
)

func AddRootPersistentFlags(cmd *cobra.Command) error {
	// Persistent Flags (applies to all commands/subcommands)
	cmd.PersistentFlags().BoolP(optname.Parallel, "p", false, "Download chunks in parallel instead of one at a time")
	cmd.PersistentFlags().StringP(optname.ChunkSize, "s", DefaultChunkSize, "Size of each chunk (e.g. 512K, 1MiB)")
	cmd.PersistentFlags().Int(optname.ChunkCount, DefaultChunkCount, "Number of chunks to download")
	cmd.PersistentFlags().DurationP(optname.Timeout, "t", download.DefaultTimeout, "Deadline for a parallel download, format is <number><unit>, e.g. 20s")
	cmd.PersistentFlags().Duration(optname.ConnTimeout, 5*time.Second, "Timeout for establishing a connection, format is <number><unit>, e.g. 10s")
	cmd.PersistentFlags().IntP(optname.Retries, "r", 0, "Number of transport retries per chunk (0 means a failed chunk fails the download)")
	cmd.PersistentFlags().Bool(optname.VerifyLength, true, "Fail a chunk whose payload length differs from the requested range")
	cmd.PersistentFlags().String(optname.LimitRate, "", "Maximum download rate in bytes per second across all chunks (e.g. 500K)")
	cmd.PersistentFlags().Bool(optname.Progress, false, "Show a progress bar on stderr")
	cmd.PersistentFlags().StringP(optname.Output, "o", output.KindFile, "Output consumer (file, null, stdout)")
	cmd.PersistentFlags().StringSlice(optname.Resolve, []string{}, "Resolve hostnames to specific IPs, format is <hostname>:<port>:<ip>")
	cmd.PersistentFlags().BoolP(optname.Verbose, "v", false, "Verbose mode (equivalent to --log-level debug)")
	cmd.PersistentFlags().String(optname.LoggingLevel, "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool(optname.ForceHTTP2, false, "Force HTTP/2")

	viper.SetEnvPrefix("RGET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.PersistentFlags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	// Hide flags from help, these are intended to be used for testing/internal benchmarking/debugging only
	for _, flag := range []string{optname.ForceHTTP2, optname.ChunkCount} {
		if err := cmd.PersistentFlags().MarkHidden(flag); err != nil {
			return fmt.Errorf("failed to hide flag %s: %w", flag, err)
		}
	}
	return nil
}

func PersistentStartupProcessFlags() error {
	if viper.GetBool(optname.Verbose) {
		viper.Set(optname.LoggingLevel, "debug")
	}
	setLogLevel(viper.GetString(optname.LoggingLevel))
	return nil
}

func setLogLevel(logLevel string) {
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// ResolveOverridesToMap parses `--resolve` values of the form
// <hostname>:<port>:<ip> into a host:port -> ip:port map.
func ResolveOverridesToMap(resolveHosts []string) (map[string]string, error) {
	logger := logging.GetLogger()
	if len(resolveHosts) == 0 {
		return nil, nil
	}
	resolveOverrides := make(map[string]string)
	for _, resolveHost := range resolveHosts {
		split := strings.SplitN(resolveHost, ":", 3)
		if len(split) != 3 {
			return nil, fmt.Errorf("invalid resolve host format, expected <hostname>:port:<ip>, got: %s", resolveHost)
		}
		host, port, addr := split[0], split[1], split[2]
		if net.ParseIP(host) != nil {
			return nil, fmt.Errorf("invalid hostname specified, looks like an IP address: %s", host)
		}
		if net.ParseIP(addr) == nil {
			return nil, fmt.Errorf("invalid IP address: %s", addr)
		}
		hostPort := net.JoinHostPort(host, port)
		target := net.JoinHostPort(addr, port)
		if existing, ok := resolveOverrides[hostPort]; ok && existing != target {
			return nil, fmt.Errorf("duplicate host:port specified: %s", hostPort)
		}
		resolveOverrides[hostPort] = target
	}
	if logger.GetLevel() <= zerolog.DebugLevel {
		for key, elem := range resolveOverrides {
			logger.Debug().Str("host_port", key).Str("resolve_target", elem).Msg("Config")
		}
	}
	return resolveOverrides, nil
}

// ChunkSize returns the configured chunk size in bytes.
func ChunkSize() (int64, error) {
	size, err := humanize.ParseBytes(viper.GetString(optname.ChunkSize))
	if err != nil {
		return 0, fmt.Errorf("%w: unable to parse chunk size: %v", download.ErrInvalidConfiguration, err)
	}
	if size == 0 || size > uint64(1<<62) {
		return 0, fmt.Errorf("%w: chunk size out of range: %s", download.ErrInvalidConfiguration, viper.GetString(optname.ChunkSize))
	}
	return int64(size), nil
}

// RateLimit returns the configured rate limit in bytes per second, zero when unset.
func RateLimit() (int64, error) {
	limit := viper.GetString(optname.LimitRate)
	if limit == "" {
		return 0, nil
	}
	rate, err := humanize.ParseBytes(limit)
	if err != nil {
		return 0, fmt.Errorf("%w: unable to parse rate limit: %v", download.ErrInvalidConfiguration, err)
	}
	if rate > uint64(1<<62) {
		return 0, fmt.Errorf("%w: rate limit out of range: %s", download.ErrInvalidConfiguration, limit)
	}
	return int64(rate), nil
}

// DownloadOptions assembles download.Options from flags and environment.
// This should be the only place outside of cmd that reads download settings from viper.
func DownloadOptions() (download.Options, error) {
	resolveOverrides, err := ResolveOverridesToMap(viper.GetStringSlice(optname.Resolve))
	if err != nil {
		return download.Options{}, err
	}
	rateLimit, err := RateLimit()
	if err != nil {
		return download.Options{}, err
	}
	return download.Options{
		Timeout:      viper.GetDuration(optname.Timeout),
		VerifyLength: viper.GetBool(optname.VerifyLength),
		RateLimit:    rateLimit,
		Client: client.Options{
			MaxRetries:       viper.GetInt(optname.Retries),
			ConnectTimeout:   viper.GetDuration(optname.ConnTimeout),
			ForceHTTP2:       viper.GetBool(optname.ForceHTTP2),
			ResolveOverrides: resolveOverrides,
		},
	}, nil
}

// Mode returns the assembly mode selected by --parallel.
func Mode() download.Mode {
	return download.ModeFor(viper.GetBool(optname.Parallel))
}

// NewGetter builds a Getter from the current configuration. Every download
// run through it shares one HTTP client and one rate limiter.
func NewGetter() (*rget.Getter, error) {
	opts, err := DownloadOptions()
	if err != nil {
		return nil, err
	}
	getter := &rget.Getter{
		Fetcher: download.NewHTTPFetcher(opts),
		Timeout: opts.Timeout,
		Output:  viper.GetString(optname.Output),
	}
	if viper.GetBool(optname.Progress) {
		getter.ProgressWriter = os.Stderr
	}
	return getter, nil
}

// NewRequest builds a Request for urlString using the configured chunk size
// and count. An empty mode selects Mode().
func NewRequest(urlString, dest string, mode download.Mode) (rget.Request, error) {
	if mode == "" {
		mode = Mode()
	}
	chunkSize, err := ChunkSize()
	if err != nil {
		return rget.Request{}, err
	}
	req, err := rget.NewRequest(urlString, dest, mode)
	if err != nil {
		return rget.Request{}, err
	}
	req.ChunkSize = chunkSize
	req.ChunkCount = viper.GetInt(optname.ChunkCount)
	if err := req.Validate(); err != nil {
		return rget.Request{}, err
	}
	return req, nil
}
