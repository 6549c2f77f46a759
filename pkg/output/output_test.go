package output_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicate/rget/pkg/output"
)

func TestFileAppend(t *testing.T) {
	r := require.New(t)
	dest := filepath.Join(t.TempDir(), "append.dat")

	f, err := output.CreateFile(dest)
	r.NoError(err)
	_, err = f.Write([]byte("hello, "))
	r.NoError(err)
	r.NoError(f.Flush())

	// flushed bytes are visible before close
	content, err := os.ReadFile(dest)
	r.NoError(err)
	r.Equal("hello, ", string(content))

	_, err = f.Write([]byte("world!"))
	r.NoError(err)
	r.NoError(f.Close())

	content, err = os.ReadFile(dest)
	r.NoError(err)
	r.Equal("hello, world!", string(content))
}

func TestFileWriteAtConcurrent(t *testing.T) {
	r := require.New(t)
	dest := filepath.Join(t.TempDir(), "positioned.dat")

	f, err := output.CreateFile(dest)
	r.NoError(err)

	chunks := [][]byte{
		bytes.Repeat([]byte{'a'}, 64),
		bytes.Repeat([]byte{'b'}, 64),
		bytes.Repeat([]byte{'c'}, 64),
		bytes.Repeat([]byte{'d'}, 64),
	}
	var wg sync.WaitGroup
	for i := len(chunks) - 1; i >= 0; i-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.WriteAt(chunks[i], int64(i*64))
			assert.NoError(t, err)
			assert.Equal(t, 64, n)
		}()
	}
	wg.Wait()
	r.NoError(f.Close())

	content, err := os.ReadFile(dest)
	r.NoError(err)
	r.Equal(bytes.Join(chunks, nil), content)
}

func TestCreateFileTruncates(t *testing.T) {
	r := require.New(t)
	dest := filepath.Join(t.TempDir(), "existing.dat")
	r.NoError(os.WriteFile(dest, []byte("some much longer previous content"), 0644))

	f, err := output.CreateFile(dest)
	r.NoError(err)
	_, err = f.Write([]byte("new"))
	r.NoError(err)
	r.NoError(f.Close())

	content, err := os.ReadFile(dest)
	r.NoError(err)
	r.Equal("new", string(content))
}

func TestCreateFileMissingParent(t *testing.T) {
	_, err := output.CreateFile(filepath.Join(t.TempDir(), "missing", "out.dat"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.dat")

	target, err := output.Open(output.KindFile, dest)
	require.NoError(t, err)
	assert.IsType(t, &output.File{}, target)
	require.NoError(t, target.Close())

	target, err = output.Open(output.KindNull, "ignored")
	require.NoError(t, err)
	assert.IsType(t, &output.Null{}, target)

	_, err = output.Open("tape", dest)
	assert.Error(t, err)
}

func TestNull(t *testing.T) {
	n := &output.Null{}
	_, err := n.Write(make([]byte, 100))
	require.NoError(t, err)
	_, err = n.WriteAt(make([]byte, 28), 4096)
	require.NoError(t, err)
	assert.NoError(t, n.Flush())
	assert.NoError(t, n.Close())
	assert.Equal(t, int64(128), n.Written())
}

func TestWithProgress(t *testing.T) {
	var bar bytes.Buffer
	n := &output.Null{}
	target := output.WithProgress(n, 64, "test", &bar)

	_, err := target.Write(make([]byte, 32))
	require.NoError(t, err)
	_, err = target.WriteAt(make([]byte, 32), 32)
	require.NoError(t, err)
	require.NoError(t, target.Flush())
	require.NoError(t, target.Close())

	assert.Equal(t, int64(64), n.Written())
}

func TestStreamAppend(t *testing.T) {
	var buf bytes.Buffer
	s := output.NewStream(&buf)

	_, err := s.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	require.NoError(t, s.Flush())
	assert.Equal(t, "abc", buf.String())

	_, err = s.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, "abcdef", buf.String())
}

func TestStreamWriteAtOrdersOnClose(t *testing.T) {
	var buf bytes.Buffer
	s := output.NewStream(&buf)

	_, err := s.WriteAt([]byte("ghi"), 6)
	require.NoError(t, err)
	_, err = s.WriteAt([]byte("abc"), 0)
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	require.NoError(t, s.Close())
	// the chunk at 3 never arrived
	assert.Equal(t, "abc\x00\x00\x00ghi", buf.String())

	_, err = s.WriteAt([]byte("x"), -1)
	assert.Error(t, err)
}
