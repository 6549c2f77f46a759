package rget_test

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rget "github.com/replicate/rget/pkg"
	"github.com/replicate/rget/pkg/download"
	"github.com/replicate/rget/pkg/logging"
	"github.com/replicate/rget/pkg/output"
)

const testChunkSize = 1024

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

// generateTestContent returns size bytes of deterministic random data
func generateTestContent(size int) []byte {
	content := make([]byte, size)
	rnd := rand.New(rand.NewSource(99))
	_, _ = rnd.Read(content)
	return content
}

// newTestServer serves content with range support. Requests whose Range
// header is listed in failRanges get a 500.
func newTestServer(content []byte, failRanges ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, failRange := range failRanges {
			if r.Header.Get("Range") == failRange {
				http.Error(w, "boom", http.StatusInternalServerError)
				return
			}
		}
		http.ServeContent(w, r, "random-bytes", time.Time{}, bytes.NewReader(content))
	}))
}

func newGetter() *rget.Getter {
	return &rget.Getter{
		Fetcher: download.NewHTTPFetcher(download.Options{VerifyLength: true}),
		Timeout: 5 * time.Second,
	}
}

func newRequest(t *testing.T, url, dest string, mode download.Mode) rget.Request {
	req, err := rget.NewRequest(url, dest, mode)
	require.NoError(t, err)
	req.ChunkSize = testChunkSize
	return req
}

type countingFetcher struct {
	calls atomic.Int32
}

func (c *countingFetcher) Fetch(_ context.Context, _ string, r download.ByteRange) ([]byte, error) {
	c.calls.Add(1)
	return make([]byte, r.Len()), nil
}

func TestNewRequestDefaults(t *testing.T) {
	req, err := rget.NewRequest("https://example.com/file.bin", "", "")
	require.NoError(t, err)
	assert.Equal(t, rget.DefaultDest, req.Dest)
	assert.Equal(t, int64(rget.DefaultChunkSize), req.ChunkSize)
	assert.Equal(t, 4, req.ChunkCount)
	assert.Equal(t, download.SequentialModeName, req.Mode)
	assert.NotEmpty(t, req.ID)
}

func TestNewRequestValidation(t *testing.T) {
	testCases := []struct {
		name string
		url  string
	}{
		{"empty", ""},
		{"relative", "/file.bin"},
		{"no host", "http:///file.bin"},
		{"unsupported scheme", "ftp://example.com/file.bin"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := rget.NewRequest(tc.url, "out.dat", download.ParallelModeName)
			assert.ErrorIs(t, err, download.ErrInvalidConfiguration)
		})
	}
}

func TestSequentialAndParallelMatch(t *testing.T) {
	content := generateTestContent(5*testChunkSize + 17)
	server := newTestServer(content)
	defer server.Close()

	dir := t.TempDir()
	getter := newGetter()

	seqDest := filepath.Join(dir, "sdownload.dat")
	result, err := getter.Execute(context.Background(), newRequest(t, server.URL, seqDest, download.SequentialModeName))
	require.NoError(t, err)
	assert.Equal(t, int64(4*testChunkSize), result.Size)

	parDest := filepath.Join(dir, "pdownload.dat")
	result, err = getter.Execute(context.Background(), newRequest(t, server.URL, parDest, download.ParallelModeName))
	require.NoError(t, err)
	assert.Equal(t, int64(4*testChunkSize), result.Size)

	seq, err := os.ReadFile(seqDest)
	require.NoError(t, err)
	par, err := os.ReadFile(parDest)
	require.NoError(t, err)

	assert.Equal(t, content[:4*testChunkSize], seq)
	assert.Equal(t, seq, par)
}

func TestExecuteOverwritesExistingDestination(t *testing.T) {
	content := generateTestContent(4 * testChunkSize)
	server := newTestServer(content)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "download.dat")
	require.NoError(t, os.WriteFile(dest, generateTestContent(10*testChunkSize), 0644))

	_, err := newGetter().Execute(context.Background(), newRequest(t, server.URL, dest, download.ParallelModeName))
	require.NoError(t, err)

	actual, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, actual)
}

func TestExecuteInvalidRequestDoesNotFetch(t *testing.T) {
	fetcher := &countingFetcher{}
	getter := &rget.Getter{Fetcher: fetcher}
	dest := filepath.Join(t.TempDir(), "never.dat")

	_, err := getter.Execute(context.Background(), rget.Request{
		Dest:       dest,
		ChunkSize:  testChunkSize,
		ChunkCount: 4,
		Mode:       download.ParallelModeName,
	})

	var downloadErr *download.DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.ErrorIs(t, err, download.ErrInvalidConfiguration)
	assert.Zero(t, fetcher.calls.Load())
	assert.NoFileExists(t, dest)
}

func TestExecuteDefaultDestination(t *testing.T) {
	t.Chdir(t.TempDir())
	fetcher := &countingFetcher{}
	getter := &rget.Getter{Fetcher: fetcher}

	result, err := getter.Execute(context.Background(), rget.Request{
		URL:        "http://example.com/file",
		ChunkSize:  testChunkSize,
		ChunkCount: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, rget.DefaultDest, result.Dest)
	assert.Equal(t, int32(4), fetcher.calls.Load())

	info, err := os.Stat(rget.DefaultDest)
	require.NoError(t, err)
	assert.Equal(t, int64(4*testChunkSize), info.Size())
}

func TestExecuteLogsCloseErrorOnFailure(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	var logs bytes.Buffer
	logging.SetOutput(&logs)
	t.Cleanup(func() { logging.SetOutput(os.Stderr) })

	// every flush to /dev/full fails, so both the download and the close do
	getter := &rget.Getter{Fetcher: &countingFetcher{}}
	_, err := getter.Execute(context.Background(), newRequest(t, "http://example.com/file", "/dev/full", download.SequentialModeName))
	require.Error(t, err)

	assert.Contains(t, logs.String(), "Download failed")
	assert.Contains(t, logs.String(), "close_error")
}

func TestExecuteOutputUnavailable(t *testing.T) {
	fetcher := &countingFetcher{}
	getter := &rget.Getter{Fetcher: fetcher}
	dest := filepath.Join(t.TempDir(), "missing-dir", "out.dat")

	_, err := getter.Execute(context.Background(), newRequest(t, "http://example.com/file", dest, download.SequentialModeName))
	assert.ErrorIs(t, err, download.ErrOutputUnavailable)
	assert.Zero(t, fetcher.calls.Load())
}

func TestParallelChunkFailureKeepsOtherChunks(t *testing.T) {
	content := generateTestContent(4 * testChunkSize)
	failing := download.ByteRange{Start: 2 * testChunkSize, End: 3*testChunkSize - 1}
	server := newTestServer(content, failing.Header())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "partial.dat")
	_, err := newGetter().Execute(context.Background(), newRequest(t, server.URL, dest, download.ParallelModeName))
	require.Error(t, err)

	var fetchErr *download.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
	assert.Equal(t, failing, fetchErr.Range)

	actual, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Len(t, actual, 4*testChunkSize)
	for i := 0; i < 4; i++ {
		chunk := actual[i*testChunkSize : (i+1)*testChunkSize]
		if i == 2 {
			assert.Equal(t, make([]byte, testChunkSize), chunk, "failed chunk must not be written")
			continue
		}
		assert.Equal(t, content[i*testChunkSize:(i+1)*testChunkSize], chunk, "chunk %d", i)
	}
}

func TestSequentialChunkFailureStops(t *testing.T) {
	content := generateTestContent(4 * testChunkSize)
	failing := download.ByteRange{Start: 2 * testChunkSize, End: 3*testChunkSize - 1}
	server := newTestServer(content, failing.Header())
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "partial.dat")
	_, err := newGetter().Execute(context.Background(), newRequest(t, server.URL, dest, download.SequentialModeName))

	var fetchErr *download.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)

	actual, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content[:2*testChunkSize], actual)
}

func TestParallelTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer server.Close()

	getter := newGetter()
	getter.Timeout = 200 * time.Millisecond
	dest := filepath.Join(t.TempDir(), "stalled.dat")

	start := time.Now()
	_, err := getter.Execute(context.Background(), newRequest(t, server.URL, dest, download.ParallelModeName))
	assert.ErrorIs(t, err, download.ErrDownloadTimedOut)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestNullOutput(t *testing.T) {
	content := generateTestContent(4 * testChunkSize)
	server := newTestServer(content)
	defer server.Close()

	getter := newGetter()
	getter.Output = output.KindNull
	dest := filepath.Join(t.TempDir(), "discarded.dat")

	result, err := getter.Execute(context.Background(), newRequest(t, server.URL, dest, download.ParallelModeName))
	require.NoError(t, err)
	assert.Equal(t, int64(4*testChunkSize), result.Size)
	assert.NoFileExists(t, dest)
}

func TestExecuteResourceTooShort(t *testing.T) {
	content := generateTestContent(3*testChunkSize + 10)
	server := newTestServer(content)
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "short.dat")
	_, err := newGetter().Execute(context.Background(), newRequest(t, server.URL, dest, download.SequentialModeName))
	assert.True(t, errors.Is(err, download.ErrLengthMismatch), "expected length mismatch, got %v", err)
}
