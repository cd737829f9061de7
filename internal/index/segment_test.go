package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlog/sift/pkg/types"
)

func TestSegment_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.seg")

	records := []types.Record{
		{ProjectID: "p1", Name: "login", Timestamp: 100, Seq: 1, Attributes: map[string]string{"browser": "firefox"}},
		{ProjectID: "p1", Name: "click", Timestamp: 200, Seq: 2, Attributes: map[string]string{}},
		{ProjectID: "p1", Name: "login", Timestamp: 300, Seq: 3, Attributes: map[string]string{"browser": "chrome", "os": "linux"}},
	}

	size, err := WriteSegment(path, records)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	got, err := ReadSegment(path)
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestSegment_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.seg")

	size, err := WriteSegment(path, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)

	got, err := ReadSegment(path)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSegment_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.seg")

	_, err := WriteSegment(path, []types.Record{
		{ProjectID: "p1", Name: "login", Timestamp: 100, Seq: 1},
	})
	require.NoError(t, err)

	// Flip a byte in the payload.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = ReadSegment(path)
	require.Error(t, err)
}

func TestSegment_DetectsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.seg")

	_, err := WriteSegment(path, []types.Record{
		{ProjectID: "p1", Name: "login", Timestamp: 100, Seq: 1},
		{ProjectID: "p1", Name: "click", Timestamp: 200, Seq: 2},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	_, err = ReadSegment(path)
	require.Error(t, err)
}
