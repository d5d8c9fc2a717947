package tqmemtable

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tqstore/tqmemtable/internal/entry"
)

// TestColdPwritevBuffersWritesThroughPwritev exercises ColdPwritevBuffers the
// way the outer database's SSTable writer would: hand its buffers straight
// to unix.Pwritev, then read the file back and confirm the bytes round-trip
// in sorted order.
func TestColdPwritevBuffersWritesThroughPwritev(t *testing.T) {
	m := New(Options{WriteBufferSize: 1 << 20})
	require.NoError(t, m.Add([]byte("banana"), []byte("b")))
	require.NoError(t, m.Add([]byte("apple"), []byte("a")))
	require.NoError(t, m.Add([]byte("cherry"), []byte("c")))

	buffers := m.ColdPwritevBuffers()
	require.Len(t, buffers, 3)

	tmpDir := os.Getenv("TMPDIR")
	if tmpDir == "" {
		tmpDir = "/tmp"
	}
	tempFile := filepath.Join(tmpDir, fmt.Sprintf("tqmemtable_pwritev_test_%d.dat", time.Now().UnixNano()))

	fd, err := unix.Open(tempFile, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC, 0644)
	require.NoError(t, err)
	defer func() {
		unix.Close(fd)
		os.Remove(tempFile)
	}()

	var expectedSize int
	for _, b := range buffers {
		expectedSize += len(b)
	}

	n, err := unix.Pwritev(fd, buffers, 0)
	require.NoError(t, err)
	require.Equal(t, expectedSize, n)

	fileData := make([]byte, expectedSize)
	readBytes, err := unix.Pread(fd, fileData, 0)
	require.NoError(t, err)
	require.Equal(t, expectedSize, readBytes)
	require.Equal(t, bytes.Join(buffers, nil), fileData)

	// First record on disk must be "apple" (sorted order), not insertion
	// order.
	require.Equal(t, "apple", string(entry.ParseUserKey(fileData)))
	it := m.NewIterator()
	it.SeekToFirst()
	require.True(t, it.Valid())
	require.Equal(t, buffers[0], it.Key())
}
