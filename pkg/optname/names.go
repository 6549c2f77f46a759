package optname

const (
	ChunkCount         = "chunk-count"
	ChunkSize          = "chunk-size"
	ConnTimeout        = "connect-timeout"
	ForceHTTP2         = "force-http2"
	LimitRate          = "limit-rate"
	LoggingLevel       = "log-level"
	MaxConcurrentFiles = "max-concurrent-files"
	Output             = "output"
	Parallel           = "parallel"
	Progress           = "progress"
	Resolve            = "resolve"
	Retries            = "retries"
	Timeout            = "timeout"
	Verbose            = "verbose"
	VerifyLength       = "verify-length"
)
